package store_test

import (
	"testing"

	"github.com/Comcast/scxml/store"
	"github.com/Comcast/scxml/store/storetest"
)

func TestMemStorage(t *testing.T) {
	storetest.Exercise(t, store.NewMemStorage())
}
