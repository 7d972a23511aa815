package loader

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jsccast/yaml"
)

// The raw types mirror the serialized form of a document.  Executable
// content stays as generic maps until action() decodes it.

var validate = validator.New()

type rawDocument struct {
	Name      string      `json:"name" yaml:"name"`
	Doc       string      `json:"doc" yaml:"doc"`
	Datamodel string      `json:"datamodel" yaml:"datamodel"`
	Binding   string      `json:"binding" yaml:"binding" validate:"omitempty,oneof=early late"`
	Initial   interface{} `json:"initial" yaml:"initial"`
	Data      []*rawData  `json:"data" yaml:"data" validate:"dive"`
	Script    string      `json:"script" yaml:"script"`
	States    []*rawState `json:"states" yaml:"states" validate:"required,min=1,dive"`
}

type rawState struct {
	Id                string           `json:"id" yaml:"id" validate:"required"`
	Parallel          bool             `json:"parallel" yaml:"parallel"`
	Final             bool             `json:"final" yaml:"final"`
	History           string           `json:"history" yaml:"history" validate:"omitempty,oneof=shallow deep"`
	Initial           interface{}      `json:"initial" yaml:"initial"`
	InitialTransition *rawTransition   `json:"initialTransition" yaml:"initialTransition"`
	States            []*rawState      `json:"states" yaml:"states" validate:"dive"`
	OnEntry           []interface{}    `json:"onentry" yaml:"onentry"`
	OnExit            []interface{}    `json:"onexit" yaml:"onexit"`
	Transitions       []*rawTransition `json:"transitions" yaml:"transitions" validate:"dive"`
	Invokes           []*rawInvoke     `json:"invokes" yaml:"invokes" validate:"dive"`
	Data              []*rawData       `json:"data" yaml:"data" validate:"dive"`
	DoneData          *rawDoneData     `json:"donedata" yaml:"donedata"`
}

type rawTransition struct {
	Event   string        `json:"event" yaml:"event"`
	Cond    string        `json:"cond" yaml:"cond"`
	Type    string        `json:"type" yaml:"type" validate:"omitempty,oneof=internal external"`
	Target  interface{}   `json:"target" yaml:"target"`
	Actions []interface{} `json:"actions" yaml:"actions"`
}

type rawInvoke struct {
	Type        string        `json:"type" yaml:"type"`
	TypeExpr    string        `json:"typeexpr" yaml:"typeexpr"`
	Src         string        `json:"src" yaml:"src"`
	SrcExpr     string        `json:"srcexpr" yaml:"srcexpr"`
	Id          string        `json:"id" yaml:"id"`
	IdLocation  string        `json:"idlocation" yaml:"idlocation"`
	Namelist    interface{}   `json:"namelist" yaml:"namelist"`
	AutoForward bool          `json:"autoforward" yaml:"autoforward"`
	Params      []*rawParam   `json:"params" yaml:"params" validate:"dive"`
	Content     *rawContent   `json:"content" yaml:"content"`
	Finalize    []interface{} `json:"finalize" yaml:"finalize"`
}

type rawData struct {
	Id    string      `json:"id" yaml:"id" validate:"required"`
	Expr  string      `json:"expr" yaml:"expr"`
	Src   string      `json:"src" yaml:"src"`
	Value interface{} `json:"value" yaml:"value"`
}

type rawParam struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Expr     string `json:"expr" yaml:"expr"`
	Location string `json:"location" yaml:"location"`
}

type rawContent struct {
	Expr     string       `json:"expr" yaml:"expr"`
	Body     interface{}  `json:"body" yaml:"body"`
	Document *rawDocument `json:"document" yaml:"document"`
}

type rawDoneData struct {
	Content *rawContent `json:"content" yaml:"content"`
	Params  []*rawParam `json:"params" yaml:"params" validate:"dive"`
}

// Executable content.

type rawIf struct {
	Cond   string        `yaml:"cond" validate:"required"`
	Then   []interface{} `yaml:"then"`
	ElseIf []*rawElseIf  `yaml:"elseif" validate:"dive"`
	Else   []interface{} `yaml:"else"`
}

type rawElseIf struct {
	Cond    string        `yaml:"cond" validate:"required"`
	Actions []interface{} `yaml:"actions"`
}

type rawForEach struct {
	Array   string        `yaml:"array" validate:"required"`
	Item    string        `yaml:"item" validate:"required"`
	Index   string        `yaml:"index"`
	Actions []interface{} `yaml:"actions"`
}

type rawAssign struct {
	Location string      `yaml:"location" validate:"required"`
	Expr     string      `yaml:"expr"`
	Value    interface{} `yaml:"value"`
}

type rawRaise struct {
	Event string `yaml:"event" validate:"required"`
}

type rawLog struct {
	Label string `yaml:"label"`
	Expr  string `yaml:"expr"`
}

type rawSend struct {
	Event      string      `yaml:"event"`
	EventExpr  string      `yaml:"eventexpr"`
	Target     string      `yaml:"target"`
	TargetExpr string      `yaml:"targetexpr"`
	Type       string      `yaml:"type"`
	TypeExpr   string      `yaml:"typeexpr"`
	Id         string      `yaml:"id"`
	IdLocation string      `yaml:"idlocation"`
	Delay      string      `yaml:"delay"`
	DelayExpr  string      `yaml:"delayexpr"`
	Namelist   interface{} `yaml:"namelist"`
	Params     []*rawParam `yaml:"params" validate:"dive"`
	Content    *rawContent `yaml:"content"`
}

type rawCancel struct {
	SendId     string `yaml:"sendid"`
	SendIdExpr string `yaml:"sendidexpr"`
}

type rawScript struct {
	Src string `yaml:"src" validate:"required"`
}

// stringList turns "a b c" or [a, b, c] into a list of strings.
func stringList(what string, x interface{}) ([]string, error) {
	switch vv := x.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(vv), nil
	case []string:
		return vv, nil
	case []interface{}:
		acc := make([]string, 0, len(vv))
		for _, y := range vv {
			s, is := y.(string)
			if !is {
				return nil, fmt.Errorf("%s: %#v isn't a string", what, y)
			}
			acc = append(acc, s)
		}
		return acc, nil
	default:
		return nil, fmt.Errorf("%s: %#v isn't a string or a list of strings", what, x)
	}
}

// recode decodes generic data into the given raw struct and then
// validates it.
func recode(x interface{}, dst interface{}) error {
	bs, err := yaml.Marshal(x)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(bs, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
