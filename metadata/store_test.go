package metadata

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetadata() map[string]any {
	return map[string]any{
		"c1": map[string]any{"redirect_uris": []any{"https://x"}},
		"c2": map[string]any{"client_name": "second", "contacts": []any{"ops@example.com"}},
	}
}

func TestStoreStartsEmpty(t *testing.T) {
	assert := assert.New(t)
	store := NewStore()
	all := store.All()
	assert.Empty(all.Metadata)
	assert.True(all.LastModified.IsZero())
	assert.Equal(0, store.Len())
}

func TestStoreReadAfterWrite(t *testing.T) {
	assert := assert.New(t)
	store := NewStore()
	md := sampleMetadata()
	store.Update(md)
	all := store.All()
	assert.Equal(md, all.Metadata)
	assert.False(all.LastModified.IsZero())
	assert.Equal(2, store.Len())
}

func TestStoreGet(t *testing.T) {
	assert := assert.New(t)
	store := NewStore()
	store.Update(sampleMetadata())

	entry, err := store.Get("c1")
	require.NoError(t, err)
	assert.Equal(map[string]any{"redirect_uris": []any{"https://x"}}, entry.Metadata)
	assert.Equal(store.LastModified(), entry.LastModified)

	_, err = store.Get("c3")
	assert.ErrorIs(err, ErrNotFound)
}

func TestStoreCopiesAreIndependent(t *testing.T) {
	assert := assert.New(t)
	store := NewStore()
	md := sampleMetadata()
	store.Update(md)

	// mutating the input after the update must not leak into the store
	md["c1"].(map[string]any)["redirect_uris"].([]any)[0] = "https://changed"
	delete(md, "c2")

	all := store.All()
	all.Metadata["c3"] = map[string]any{}
	all.Metadata["c1"].(map[string]any)["client_name"] = "mutated"

	entry, err := store.Get("c1")
	require.NoError(t, err)
	entry.Metadata["redirect_uris"].([]any)[0] = "https://other"

	again := store.All()
	assert.Equal(sampleMetadata(), again.Metadata)
}

func TestStoreAllIsIdempotent(t *testing.T) {
	store := NewStore()
	store.Update(sampleMetadata())
	assert.Equal(t, store.All(), store.All())
}

func TestStoreUpdateSetsTimestamp(t *testing.T) {
	assert := assert.New(t)
	store := NewStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	store.Update(sampleMetadata())
	assert.Equal(fixed, store.All().LastModified)

	later := fixed.Add(time.Hour)
	store.now = func() time.Time { return later }
	store.Update(map[string]any{})
	all := store.All()
	assert.Empty(all.Metadata)
	assert.Equal(later, all.LastModified)
}

func TestStoreUpdateNil(t *testing.T) {
	store := NewStore()
	store.Update(sampleMetadata())
	store.Update(nil)
	assert.NotNil(t, store.All().Metadata)
	assert.Equal(t, 0, store.Len())
}

func TestStoreConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	store := NewStore()
	small := map[string]any{"a": map[string]any{"n": 1.0}}
	large := map[string]any{
		"a": map[string]any{"n": 2.0},
		"b": map[string]any{"n": 2.0},
	}
	store.Update(small)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				store.Update(large)
			} else {
				store.Update(small)
			}
		}
		close(stop)
	}()

	errs := make(chan string, 8)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				all := store.All()
				n := all.Metadata["a"].(map[string]any)["n"].(float64)
				if (n == 1.0 && len(all.Metadata) != 1) || (n == 2.0 && len(all.Metadata) != 2) {
					errs <- "torn snapshot observed"
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
}

func TestStoreGetResultIsIndependent(t *testing.T) {
	store := NewStore()
	store.Update(map[string]any{
		"c1": map[string]any{
			"ports":         map[any]any{80: "http"},
			"redirect_uris": []any{"https://x"},
		},
	})

	entry, err := store.Get("c1")
	require.NoError(t, err)
	ports, ok := entry.Metadata["ports"].(map[string]any)
	require.True(t, ok)
	ports["80"] = "MUTATED"
	entry.Metadata["redirect_uris"].([]any)[0] = "https://changed"

	again, err := store.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"ports":         map[string]any{"80": "http"},
		"redirect_uris": []any{"https://x"},
	}, again.Metadata)
}
