// Package interpreters gathers the standard datamodels.
package interpreters

import (
	"github.com/Comcast/scxml/core"
	"github.com/Comcast/scxml/interpreters/ecmascript"
	"github.com/Comcast/scxml/interpreters/null"
)

// Standard returns the standard datamodels.
//
// "ecmascript-ext" is the ECMAScript datamodel with the Extended
// functions (cronNext, randstr).
func Standard() map[string]core.DatamodelFactory {
	return map[string]core.DatamodelFactory{
		"ecmascript": func() core.Datamodel {
			return ecmascript.NewDatamodel()
		},
		"ecmascript-ext": func() core.Datamodel {
			dm := ecmascript.NewDatamodel()
			dm.Extended = true
			return dm
		},
		"null": func() core.Datamodel {
			return null.NewDatamodel()
		},
	}
}

// WithLibraries is like Standard except the ECMAScript datamodels
// resolve require() in scripts with the given provider.
func WithLibraries(libs ecmascript.LibraryProvider) map[string]core.DatamodelFactory {
	dms := Standard()
	dms["ecmascript"] = func() core.Datamodel {
		dm := ecmascript.NewDatamodel()
		dm.Libraries = libs
		return dm
	}
	dms["ecmascript-ext"] = func() core.Datamodel {
		dm := ecmascript.NewDatamodel()
		dm.Extended = true
		dm.Libraries = libs
		return dm
	}
	return dms
}
