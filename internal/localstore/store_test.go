package localstore_test

import (
	"testing"

	"pos-backend/internal/localstore"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_SaveLoad(t *testing.T) {
	store, err := localstore.New(t.TempDir())
	assert.NoError(t, err)

	assert.NoError(t, store.Save("catalog_cart", payload{Name: "チョコ", Count: 3}))

	var got payload
	assert.NoError(t, store.Load("catalog_cart", &got))
	assert.Equal(t, payload{Name: "チョコ", Count: 3}, got)
}

// ファイルが無いキーのLoadは何もせずnil
func TestStore_LoadMissingKey(t *testing.T) {
	store, err := localstore.New(t.TempDir())
	assert.NoError(t, err)

	got := payload{Name: "既定値"}
	assert.NoError(t, store.Load("unknown", &got))
	assert.Equal(t, "既定値", got.Name)
}

func TestStore_Delete(t *testing.T) {
	store, err := localstore.New(t.TempDir())
	assert.NoError(t, err)

	assert.NoError(t, store.Save("k", payload{Count: 1}))
	assert.NoError(t, store.Delete("k"))
	//二重Deleteも成功扱い
	assert.NoError(t, store.Delete("k"))

	var got payload
	assert.NoError(t, store.Load("k", &got))
	assert.Equal(t, 0, got.Count)
}

// 同じディレクトリで作り直しても前回の内容が読める
func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := localstore.New(dir)
	assert.NoError(t, err)
	assert.NoError(t, first.Save("k", payload{Count: 42}))

	second, err := localstore.New(dir)
	assert.NoError(t, err)

	var got payload
	assert.NoError(t, second.Load("k", &got))
	assert.Equal(t, 42, got.Count)
}
