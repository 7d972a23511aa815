package core

import (
	"context"
)

// TurnstileDocument makes an example Document that's useful to have
// around.
//
// See https://en.wikipedia.org/wiki/Finite-state_machine#Example:_coin-operated_turnstile.
//
// The machine counts coins in "coins" and stops on "halt".
func TurnstileDocument() *Document {
	return &Document{
		Name:      "turnstile",
		Doc:       "A coin-operated turnstile.  Send `coin` and `push`.",
		Datamodel: "ecmascript",
		Data: []*Data{
			{Id: "coins", Expr: "0"},
		},
		States: []*State{
			{
				Id: "locked",
				Transitions: []*Transition{
					{
						Event:   "coin",
						Targets: []string{"unlocked"},
						Actions: []Action{
							&Assign{Location: "coins", Expr: "coins + 1"},
						},
					},
					{Event: "push", Targets: []string{"locked"}},
					{Event: "halt", Targets: []string{"halted"}},
				},
			},
			{
				Id: "unlocked",
				Transitions: []*Transition{
					{
						Event:   "coin",
						Targets: []string{"unlocked"},
						Actions: []Action{
							&Assign{Location: "coins", Expr: "coins + 1"},
						},
					},
					{Event: "push", Targets: []string{"locked"}},
					{Event: "halt", Targets: []string{"halted"}},
				},
			},
			{
				Id:    "halted",
				Final: true,
				DoneData: &DoneData{
					Params: []*Param{{Name: "coins", Location: "coins"}},
				},
			},
		},
	}
}

// TurnstileDefinition compiles TurnstileDocument.
func TurnstileDefinition(ctx context.Context) (*Definition, error) {
	return TurnstileDocument().Compile(ctx)
}
