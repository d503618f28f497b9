package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"mediakit/internal/render"
	"mediakit/internal/service"
)

func TestEventView(t *testing.T) {
	em := &service.MockEmitter{}
	v := newEventView(context.Background(), em)

	assert.NoError(t, v.Mount(render.Element{ID: "a"}))
	assert.NoError(t, v.Mount(render.Element{ID: "b"}))
	assert.NoError(t, v.Mount(render.Element{ID: "a"}))
	assert.Equal(t, []string{"a", "a", "b"}, v.Rendered())

	assert.Equal(t, 1, v.Prune("a"))
	assert.Equal(t, 0, v.Prune("b"))
	assert.Equal(t, []string{"a", "b"}, v.Rendered())
	assert.Len(t, em.Named(EventRenderPrune), 1)

	assert.NoError(t, v.Update(render.Element{ID: "b", Template: "x"}))
	assert.NoError(t, v.Unmount("a"))
	assert.NoError(t, v.Unmount("missing"))
	assert.Equal(t, []string{"b"}, v.Rendered())
	assert.Len(t, em.Named(EventRenderMount), 3)
	assert.Len(t, em.Named(EventRenderUpdate), 1)
	assert.Len(t, em.Named(EventRenderUnmount), 1)

	v.Reported([]string{"c", "b", "c"})
	assert.Equal(t, []string{"c", "c", "b"}, v.Rendered())
}
