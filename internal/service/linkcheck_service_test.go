package service

import (
	"context"
	"errors"
	"testing"

	"scicat/internal/clients"
	"scicat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubLinkClient map[string]clients.LinkResult

func (s stubLinkClient) Check(_ context.Context, url string) clients.LinkResult {
	return s[url]
}

func TestCheckLinks(t *testing.T) {
	repo := &mockResourceRepo{}
	client := stubLinkClient{
		"https://ok.example.org":   {StatusCode: 200, OK: true},
		"https://gone.example.org": {StatusCode: 404},
		"https://down.example.org": {Err: errors.New("connection refused")},
	}
	svc := NewLinkCheckService(repo, client, 2, testLog)

	repo.On("ListAll", mock.Anything).Return([]models.Resource{
		{ID: 1, Published: true, Link: "https://ok.example.org"},
		{ID: 2, Published: true, Link: "https://gone.example.org"},
		{ID: 3, Published: true, Link: "https://down.example.org"},
		{ID: 4, Published: false, Link: "https://hidden.example.org"},
		{ID: 5, Published: true},
	}, nil)
	repo.On("SaveLinkCheck", mock.Anything, mock.MatchedBy(func(c models.LinkCheck) bool {
		return c.ResourceID == 1 && c.OK && c.Error == ""
	})).Return(nil).Once()
	repo.On("SaveLinkCheck", mock.Anything, mock.MatchedBy(func(c models.LinkCheck) bool {
		return c.ResourceID == 2 && !c.OK && c.StatusCode == 404 && c.Error == "unexpected status 404"
	})).Return(nil).Once()
	repo.On("SaveLinkCheck", mock.Anything, mock.MatchedBy(func(c models.LinkCheck) bool {
		return c.ResourceID == 3 && !c.OK && c.Error != ""
	})).Return(nil).Once()

	run, err := svc.CheckLinks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, run.Checked)
	assert.Equal(t, 2, run.Broken)
	repo.AssertExpectations(t)
}
