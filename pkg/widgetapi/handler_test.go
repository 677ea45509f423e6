package widgetapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/otpkeeper/pkg/display"
	"github.com/dmitrymomot/otpkeeper/pkg/widgetapi"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Cards(ctx context.Context) ([]display.Card, error) {
	args := m.Called(ctx)
	cards, _ := args.Get(0).([]display.Card)
	return cards, args.Error(1)
}

func (m *mockSource) Card(ctx context.Context, index int) (display.Card, error) {
	args := m.Called(ctx, index)
	card, _ := args.Get(0).(display.Card)
	return card, args.Error(1)
}

func serve(t *testing.T, src widgetapi.Source, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	widgetapi.NewRouter(src, nil).ServeHTTP(rec, req)
	return rec
}

func TestRouter_Cards(t *testing.T) {
	t.Parallel()

	src := &mockSource{}
	src.On("Cards", mock.Anything).Return([]display.Card{
		{Issuer: "GitHub", Code: "287082", FormattedCode: "287 082", Index: 1, Count: 2},
		{Issuer: "AWS", Code: "123456", FormattedCode: "123 456", Index: 2, Count: 2},
	}, nil)

	rec := serve(t, src, "/cards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body struct {
		Count int            `json:"count"`
		Cards []display.Card `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Cards, 2)
	assert.Equal(t, "287 082", body.Cards[0].FormattedCode)
}

func TestRouter_CardsEmpty(t *testing.T) {
	t.Parallel()

	src := &mockSource{}
	src.On("Cards", mock.Anything).Return(nil, nil)

	rec := serve(t, src, "/cards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"cards":[]}`, rec.Body.String())
}

func TestRouter_CardByPosition(t *testing.T) {
	t.Parallel()

	src := &mockSource{}
	src.On("Card", mock.Anything, 2).Return(display.Card{Issuer: "AWS", Index: 3, Count: 3}, nil)

	rec := serve(t, src, "/cards/3")
	require.Equal(t, http.StatusOK, rec.Code)

	var card display.Card
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "AWS", card.Issuer)
	assert.Equal(t, 3, card.Index)
	src.AssertExpectations(t)
}

func TestRouter_Errors(t *testing.T) {
	t.Parallel()

	src := &mockSource{}
	src.On("Cards", mock.Anything).Return(nil, errors.New("secret store locked"))

	rec := serve(t, src, "/cards")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"cards unavailable"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret store")

	rec = serve(t, src, "/cards/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	src.AssertNotCalled(t, "Card", mock.Anything, mock.Anything)
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	rec := serve(t, &mockSource{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())
}
