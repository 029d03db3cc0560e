package besteffort

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestRunSuccess(t *testing.T) {
	ran := false
	ok := Run("task", func() error {
		ran = true
		return nil
	})
	assert.True(t, ok)
	assert.True(t, ran)
}

func TestRunSwallowsError(t *testing.T) {
	ok := Run("task", func() error {
		return eris.New("boom")
	})
	assert.False(t, ok)
}

func TestRunRecoversPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Run("task", func() error {
			panic("boom")
		})
	})
}

func TestGoCompletes(t *testing.T) {
	done := make(chan struct{})
	Go("task", func() error {
		close(done)
		return nil
	})
	<-done
}
