package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct{}

func (fakeStore) GetItem(string) (string, bool) { return "", false }
func (fakeStore) SetItem(string, string) error  { return nil }
func (fakeStore) RemoveItem(string) error       { return nil }

type fakeNotifier struct{}

func (fakeNotifier) AddListener(string, Listener)    {}
func (fakeNotifier) RemoveListener(string, Listener) {}

func TestEnvironment_Enabled(t *testing.T) {
	assert.False(t, Environment{}.Enabled())
	assert.False(t, Environment{Store: fakeStore{}}.Enabled())
	assert.False(t, Environment{Notifier: fakeNotifier{}}.Enabled())
	assert.True(t, Environment{Store: fakeStore{}, Notifier: fakeNotifier{}}.Enabled())
}

func TestChange_Cleared(t *testing.T) {
	assert.True(t, Change{}.Cleared())
	assert.False(t, Change{Key: String("k")}.Cleared())
}

func TestListenerFunc(t *testing.T) {
	var got Change
	fn := ListenerFunc(func(c Change) { got = c })
	var l Listener = &fn

	l.HandleChange(Change{Key: String("total"), NewValue: String("42")})

	assert.Equal(t, "total", *got.Key)
	assert.Equal(t, "42", *got.NewValue)
	assert.Nil(t, got.OldValue)
}
