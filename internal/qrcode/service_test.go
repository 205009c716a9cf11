package qrcode

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classattend/internal/apperr"
	"classattend/internal/model"
	"classattend/internal/store/memory"
)

func newService(t *testing.T) (*Service, model.Subject) {
	t.Helper()
	st := memory.New()
	sub, err := st.CreateSubject(context.Background(), model.Subject{Name: "Advanced Calculus", Code: "MATH101"})
	require.NoError(t, err)
	return NewService(st), sub
}

func TestGenerateKeepsOneActiveCode(t *testing.T) {
	svc, sub := newService(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, sub.ID, "ABC123")
	require.NoError(t, err)
	_, err = svc.Generate(ctx, sub.ID, "XYZ789")
	require.NoError(t, err)

	active, err := svc.Active(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", active.Code)

	_, err = svc.Resolve(ctx, "ABC123")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	got, err := svc.Resolve(ctx, " XYZ789 ")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.SubjectID)
}

func TestGenerateConcurrent(t *testing.T) {
	svc, sub := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, code := range []string{"A1", "B2", "C3", "D4", "E5", "F6"} {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := svc.Generate(ctx, sub.ID, code)
			assert.NoError(t, err)
		}(code)
	}
	wg.Wait()

	codes, err := svc.repo.ListActiveQrCodes(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, codes, 1)
}

func TestGenerateValidation(t *testing.T) {
	svc, sub := newService(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, sub.ID, "   ")
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Generate(ctx, 404, "ABC123")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Active(ctx, sub.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestExpireAll(t *testing.T) {
	svc, sub := newService(t)
	ctx := context.Background()
	_, err := svc.Generate(ctx, sub.ID, "ABC123")
	require.NoError(t, err)

	n, err := svc.ExpireAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Active(ctx, sub.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
