package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var in searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Etsy", in.Platform)
		assert.Equal(t, "CraftyCorner", in.Query)

		_ = json.NewEncoder(w).Encode(searchResponse{Items: []Item{
			{Title: "Crafty Corner", Description: "Handmade things", Emails: []string{"hi@crafty.test"}},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	items, err := c.Search(context.Background(), "Etsy", "CraftyCorner")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Crafty Corner", items[0].Title)
}

func TestSearchEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Search(context.Background(), "Amazon", "acme")
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestSearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Search(context.Background(), "Amazon", "acme")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode())
	assert.Contains(t, apiErr.Body, "quota exceeded")
}

func TestSearchNotConfigured(t *testing.T) {
	c := NewClient("", "", time.Second)
	assert.False(t, c.Configured())
	_, err := c.Search(context.Background(), "Etsy", "x")
	assert.Error(t, err)
}
