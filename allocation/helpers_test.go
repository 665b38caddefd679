package allocation_test

import (
	"github.com/hupe1980/polyalloc/adapter/memory"
	"github.com/hupe1980/polyalloc/model"
)

func relationalOnly(id model.AdapterID) *memory.Store {
	return memory.New(id, "rel", memory.WithModels(model.Relational))
}
