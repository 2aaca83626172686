package ratingfeed

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "title_rating:42", Channel(42))
}

func TestDisabledPublisher(t *testing.T) {
	var nilPub *Publisher
	assert.False(t, nilPub.Enabled())
	assert.NoError(t, nilPub.OnRatingChanged(context.Background(), 1, nil))

	p := NewPublisher(nil)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.OnRatingChanged(context.Background(), 1, nil))

	_, err := p.Subscribe(context.Background(), 1)
	assert.Error(t, err)
}

func TestUpdateEncoding(t *testing.T) {
	r := 4.5
	b, err := json.Marshal(Update{TitleID: 3, Rating: &r})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title_id":3,"rating":4.5}`, string(b))

	b, err = json.Marshal(Update{TitleID: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title_id":3,"rating":null}`, string(b))
}
