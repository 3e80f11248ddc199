package transcript_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "github.com/anirudh9911/AI-Chatbot/internal/errors"
	"github.com/anirudh9911/AI-Chatbot/internal/model"
	"github.com/anirudh9911/AI-Chatbot/internal/transcript"
)

func TestTranscript_Append(t *testing.T) {
	t.Run("Success - Assigns sequential ids", func(t *testing.T) {
		tr, err := transcript.New()
		require.NoError(t, err)

		first, err := tr.Append(model.Message{Content: "hi", IsUser: true, Type: "text"})
		require.NoError(t, err)
		second, err := tr.Append(model.Message{Content: "hello", Type: "text"})
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.ID)
		assert.Equal(t, int64(2), second.ID)
		assert.Equal(t, 2, tr.Len())
	})

	t.Run("Success - Continues after the highest existing id", func(t *testing.T) {
		tr, err := transcript.New(model.Message{ID: 10}, model.Message{ID: 4})
		require.NoError(t, err)

		m, err := tr.Append(model.Message{})
		require.NoError(t, err)
		assert.Equal(t, int64(11), m.ID)
	})

	t.Run("Failure - Duplicate id", func(t *testing.T) {
		tr, err := transcript.New(model.Message{ID: 1})
		require.NoError(t, err)

		_, err = tr.Append(model.Message{ID: 1})
		assert.ErrorIs(t, err, transcript.ErrDuplicateID)
		assert.ErrorIs(t, err, app_errors.ErrConflict)
	})

	t.Run("Success - History ids are not reassigned", func(t *testing.T) {
		tr, err := transcript.New(model.Message{ID: 0, Content: "a"}, model.Message{ID: 1, Content: "b"})
		require.NoError(t, err)

		got, ok := tr.Get(0)
		require.True(t, ok)
		assert.Equal(t, "a", got.Content)
	})

	t.Run("Failure - Duplicate id in history", func(t *testing.T) {
		_, err := transcript.New(model.Message{ID: 3}, model.Message{ID: 3})
		assert.ErrorIs(t, err, transcript.ErrDuplicateID)
	})
}

func TestTranscript_Lifecycle(t *testing.T) {
	tr, err := transcript.New()
	require.NoError(t, err)

	info := model.NewSearchInfo("weather today")
	assistant, err := tr.Append(model.Message{Type: "search", IsLoading: model.Bool(true), SearchInfo: &info})
	require.NoError(t, err)

	t.Run("Success - Update while loading", func(t *testing.T) {
		updated, err := tr.Update(assistant.ID, func(m *model.Message) {
			m.SearchInfo.AddStage(model.StageStarted)
			m.ID = 99
		})
		require.NoError(t, err)
		assert.Equal(t, assistant.ID, updated.ID)
		assert.Equal(t, []string{"started"}, updated.SearchInfo.Stages)
		assert.True(t, updated.Loading())
	})

	t.Run("Success - Complete marks the message finished", func(t *testing.T) {
		done, err := tr.Complete(assistant.ID, func(m *model.Message) {
			m.Content = "Sunny."
			m.SearchInfo.AddStage(model.StageDone)
		})
		require.NoError(t, err)
		require.NotNil(t, done.IsLoading)
		assert.False(t, *done.IsLoading)
		assert.Equal(t, "Sunny.", done.Content)
	})

	t.Run("Failure - Completed message is immutable", func(t *testing.T) {
		_, err := tr.Update(assistant.ID, func(m *model.Message) { m.Content = "changed" })
		assert.ErrorIs(t, err, transcript.ErrFinalized)

		got, ok := tr.Get(assistant.ID)
		require.True(t, ok)
		assert.Equal(t, "Sunny.", got.Content)
	})

	t.Run("Failure - Message without isLoading is immutable", func(t *testing.T) {
		user, err := tr.Append(model.Message{Content: "hi", IsUser: true})
		require.NoError(t, err)
		_, err = tr.Update(user.ID, nil)
		assert.ErrorIs(t, err, transcript.ErrFinalized)
	})

	t.Run("Failure - Unknown id", func(t *testing.T) {
		_, err := tr.Update(404, nil)
		assert.ErrorIs(t, err, transcript.ErrNotFound)
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})
}

func TestTranscript_ReturnsCopies(t *testing.T) {
	info := model.NewSearchInfo("q")
	tr, err := transcript.New(model.Message{ID: 1, IsLoading: model.Bool(true), SearchInfo: &info})
	require.NoError(t, err)

	info.AddStage("outside")
	msgs := tr.Messages()
	msgs[0].SearchInfo.AddStage("also outside")

	got, ok := tr.Get(1)
	require.True(t, ok)
	assert.Empty(t, got.SearchInfo.Stages)
}

func TestTranscript_RemoveAndClear(t *testing.T) {
	tr, err := transcript.New(model.Message{ID: 1}, model.Message{ID: 2}, model.Message{ID: 3})
	require.NoError(t, err)

	require.NoError(t, tr.Remove(2))
	ids := []int64{}
	for _, m := range tr.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)

	_, ok := tr.Get(3)
	assert.True(t, ok)
	assert.ErrorIs(t, tr.Remove(2), transcript.ErrNotFound)

	tr.Clear()
	assert.Equal(t, 0, tr.Len())

	m, err := tr.Append(model.Message{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.ID)
}

func TestTranscript_ConcurrentUpdates(t *testing.T) {
	info := model.NewSearchInfo("q")
	tr, err := transcript.New(model.Message{ID: 1, IsLoading: model.Bool(true), SearchInfo: &info})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Update(1, func(m *model.Message) { m.SearchInfo.AddStage("tick") })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _ := tr.Get(1)
	assert.Len(t, got.SearchInfo.Stages, 50)
}

func TestDecode(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		data := `[
			{"id": 1, "content": "weather today?", "isUser": true, "type": "text"},
			{"id": 2, "content": "Sunny", "isUser": false, "type": "search", "isLoading": false,
			 "searchInfo": {"stages": ["started","done"], "query": "weather today",
			 "urls": ["https://x.com", {"title": "X", "url": "https://x.com"}]}}
		]`
		tr, err := transcript.Decode([]byte(data))
		require.NoError(t, err)
		assert.Equal(t, 2, tr.Len())

		out, err := json.Marshal(tr)
		require.NoError(t, err)
		assert.JSONEq(t, data, string(out))
	})

	t.Run("Success - Zero id is kept as given", func(t *testing.T) {
		data := `[
			{"id": 0, "content": "first", "isUser": true, "type": "text"},
			{"id": 1, "content": "second", "isUser": false, "type": "text"}
		]`
		tr, err := transcript.Decode([]byte(data))
		require.NoError(t, err)
		require.Equal(t, 2, tr.Len())

		out, err := json.Marshal(tr)
		require.NoError(t, err)
		assert.JSONEq(t, data, string(out))

		next, err := tr.Append(model.Message{Content: "third"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), next.ID)
	})

	t.Run("Failure - Problems carry the element index", func(t *testing.T) {
		data := `[
			{"id": 1, "content": "ok", "isUser": true, "type": "text"},
			{"id": 2, "content": "", "isUser": false, "type": "search", "searchInfo": {"stages": [], "urls": []}}
		]`
		_, err := transcript.Decode([]byte(data))
		require.Error(t, err)
		assert.ErrorIs(t, err, app_errors.ErrValidation)
		assert.Contains(t, err.Error(), "1.searchInfo.query: is required")
	})

	t.Run("Failure - Duplicate ids", func(t *testing.T) {
		data := `[{"id": 1, "content": "a", "isUser": true, "type": "text"},
			{"id": 1, "content": "b", "isUser": false, "type": "text"}]`
		_, err := transcript.Decode([]byte(data))
		assert.ErrorIs(t, err, transcript.ErrDuplicateID)
	})

	t.Run("Failure - Not an array", func(t *testing.T) {
		_, err := transcript.Decode([]byte(`{"id": 1}`))
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})
}
