package obslog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	l := New("not-a-level", "text")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewSelectsJSONFormatterCaseInsensitively(t *testing.T) {
	l := New("info", "JSON")
	_, ok := l.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestNewDefaultsToTextFormatter(t *testing.T) {
	l := New("info", "anything-else")
	_, ok := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

func TestWithGameAttachesExpectedFields(t *testing.T) {
	l := NewDiscard()
	entry := l.WithGame("job-1", 3, 10)
	assert.Equal(t, "job-1", entry.Data["game_id"])
	assert.Equal(t, 3, entry.Data["idx"])
	assert.Equal(t, 10, entry.Data["total"])
}

func TestWithWorkerAndEngineAttachFields(t *testing.T) {
	l := NewDiscard()
	assert.Equal(t, 5, l.WithWorker(5).Data["worker_id"])
	assert.Equal(t, "Pella", l.WithEngine("Pella").Data["engine"])
}
