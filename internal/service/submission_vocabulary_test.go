package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"scicat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func termsByKind(terms []models.ControlledTerm) map[models.TermKind][]string {
	out := make(map[models.TermKind][]string)
	for _, t := range terms {
		out[t.Kind] = append(out[t.Kind], t.Name)
	}
	return out
}

// resolveTerms answers FindOrCreateTerm with a fresh term per (kind, name).
func resolveTerms(r *testRepos) {
	var next uint = 100
	r.vocabulary.On("FindOrCreateTerm", mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, kind models.TermKind, name string) *models.ControlledTerm {
			next++
			return &models.ControlledTerm{ID: next, Kind: kind, Name: name}
		}, nil)
}

func TestSubmitDecodesVocabularyFields(t *testing.T) {
	r, _, _, svc := newSubmissionFixture()

	body := []byte(`{
		"submitter_name": "Ada Lovelace",
		"submitter_email": "ada@example.org",
		"resource_name": "SolarWindSim",
		"description": "Simulates the solar wind.",
		"link": "https://sws.example.org",
		"docs_url": "https://sws.example.org/docs",
		"publication": "Lovelace et al. 2024, ApJ 900, 1",
		"regions": ["Heliosphere", "Magnetosphere"],
		"functionality": ["Modeling"],
		"license": "MIT",
		"programming_languages": ["Fortran", "Python"],
		"operating_systems": ["Linux"]
	}`)
	var input SubmissionInput
	require.NoError(t, json.Unmarshal(body, &input))

	var stored *models.Submission
	r.submissions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.Submission)
	}).Return(nil)
	r.submissions.On("AddEvent", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Submit(context.Background(), input, body)
	require.NoError(t, err)

	require.NotNil(t, stored)
	assert.Equal(t, "https://sws.example.org/docs", stored.DocsURL)
	assert.Equal(t, "Lovelace et al. 2024, ApJ 900, 1", stored.Publication)
	assert.Equal(t, "Heliosphere, Magnetosphere", stored.Regions)
	assert.Equal(t, "Modeling", stored.Functionalities)
	assert.Equal(t, "MIT", stored.License)
	assert.Equal(t, "Fortran, Python", stored.Languages)
	assert.Equal(t, "Linux", stored.OperatingSystems)
}

func TestSubmitRejectsBadDocsURL(t *testing.T) {
	_, _, _, svc := newSubmissionFixture()
	in := validInput()
	in.DocsURL = "docs"
	_, err := svc.Submit(context.Background(), in, nil)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestPublishAttachesEveryTermKind(t *testing.T) {
	r, _, _, svc := newSubmissionFixture()
	sub := &models.Submission{
		ID:               12,
		Kind:             models.SubmissionNew,
		Status:           models.StatusAccepted,
		ResourceName:     "SolarWindSim",
		Description:      "Simulates the solar wind.",
		Link:             "https://sws.example.org",
		DocsURL:          "https://sws.example.org/docs",
		Publication:      "Lovelace et al. 2024",
		Keywords:         "solar wind",
		Regions:          "Heliosphere, Magnetosphere",
		Functionalities:  "Modeling",
		License:          "MIT",
		Languages:        "Fortran, Python",
		OperatingSystems: "Linux",
	}

	r.submissions.On("GetForUpdate", mock.Anything, uint(12)).Return(sub, nil)
	r.resources.On("ExistsNameVersion", mock.Anything, "SolarWindSim", "", uint(0)).Return(false, nil)
	r.resources.On("SlugTaken", mock.Anything, "solarwindsim").Return(false, nil)
	r.categories.On("GetBySlugs", mock.Anything, []string(nil)).Return([]models.Category{}, nil)
	resolveTerms(r)

	var created *models.Resource
	r.resources.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.Resource)
		created.ID = 70
	}).Return(nil)
	r.submissions.On("Save", mock.Anything, sub).Return(nil)
	r.submissions.On("AddEvent", mock.Anything, mock.Anything).Return(nil)
	r.submissions.On("GetByID", mock.Anything, uint(12)).Return(sub, nil)

	_, err := svc.Transition(context.Background(), 12, TransitionInput{Action: "publish"}, "curator")
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "https://sws.example.org/docs", created.DocsURL)
	assert.Equal(t, "Lovelace et al. 2024", created.Publication)

	kinds := termsByKind(created.Terms)
	assert.Equal(t, []string{"solar wind"}, kinds[models.TermKeyword])
	assert.Equal(t, []string{"Heliosphere", "Magnetosphere"}, kinds[models.TermRegion])
	assert.Equal(t, []string{"Modeling"}, kinds[models.TermFunctionality])
	assert.Equal(t, []string{"MIT"}, kinds[models.TermLicense])
	assert.Equal(t, []string{"Fortran", "Python"}, kinds[models.TermLanguage])
	assert.Equal(t, []string{"Linux"}, kinds[models.TermOS])
}

func TestPublishUpdateReplacesLicense(t *testing.T) {
	r, _, _, svc := newSubmissionFixture()
	published := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &models.Resource{
		ID:          5,
		Name:        "OrbitFit",
		Version:     "1.1",
		Slug:        "orbitfit-1-1",
		DocsURL:     "https://old.example.org/docs",
		Published:   true,
		PublishedAt: &published,
		Terms: []models.ControlledTerm{
			{ID: 1, Kind: models.TermLicense, Name: "GPL-3.0"},
			{ID: 2, Kind: models.TermRegion, Name: "Exoplanets"},
		},
	}
	sub := &models.Submission{
		ID:                9,
		Kind:              models.SubmissionUpdate,
		UpdatesResourceID: ptrUint(5),
		Status:            models.StatusAccepted,
		ResourceName:      "OrbitFit",
		Version:           "1.2",
		Description:       "New description",
		Link:              "https://orbitfit.example.org",
		Publication:       "Lovelace 2026",
		License:           "MIT",
		Regions:           "Exoplanets",
	}

	r.submissions.On("GetForUpdate", mock.Anything, uint(9)).Return(sub, nil)
	r.resources.On("GetByID", mock.Anything, uint(5)).Return(existing, nil)
	r.resources.On("ExistsNameVersion", mock.Anything, "OrbitFit", "1.2", uint(5)).Return(false, nil)
	r.categories.On("GetBySlugs", mock.Anything, []string(nil)).Return([]models.Category{}, nil)
	r.vocabulary.On("FindOrCreateTerm", mock.Anything, models.TermLicense, "MIT").
		Return(&models.ControlledTerm{ID: 3, Kind: models.TermLicense, Name: "MIT"}, nil)
	r.vocabulary.On("FindOrCreateTerm", mock.Anything, models.TermRegion, "Exoplanets").
		Return(&models.ControlledTerm{ID: 2, Kind: models.TermRegion, Name: "Exoplanets"}, nil)
	r.resources.On("Update", mock.Anything, existing).Return(nil)
	r.resources.On("ReplaceAssociations", mock.Anything, existing).Return(nil)
	r.submissions.On("Save", mock.Anything, sub).Return(nil)
	r.submissions.On("AddEvent", mock.Anything, mock.Anything).Return(nil)
	r.submissions.On("GetByID", mock.Anything, uint(9)).Return(sub, nil)

	_, err := svc.Transition(context.Background(), 9, TransitionInput{Action: "publish"}, "curator")
	require.NoError(t, err)

	kinds := termsByKind(existing.Terms)
	assert.Equal(t, []string{"MIT"}, kinds[models.TermLicense])
	assert.Equal(t, []string{"Exoplanets"}, kinds[models.TermRegion])
	assert.Len(t, existing.Terms, 2)
	assert.Equal(t, "Lovelace 2026", existing.Publication)
	assert.Equal(t, "https://old.example.org/docs", existing.DocsURL)
}

func TestPublishUpdateKeepsLicenseWhenNoneSubmitted(t *testing.T) {
	r, _, _, svc := newSubmissionFixture()
	existing := &models.Resource{
		ID:    5,
		Name:  "OrbitFit",
		Slug:  "orbitfit",
		Terms: []models.ControlledTerm{{ID: 1, Kind: models.TermLicense, Name: "GPL-3.0"}},
	}
	sub := &models.Submission{
		ID:                9,
		Kind:              models.SubmissionUpdate,
		UpdatesResourceID: ptrUint(5),
		Status:            models.StatusAccepted,
		ResourceName:      "OrbitFit",
		Description:       "d",
		Link:              "https://orbitfit.example.org",
	}

	r.submissions.On("GetForUpdate", mock.Anything, uint(9)).Return(sub, nil)
	r.resources.On("GetByID", mock.Anything, uint(5)).Return(existing, nil)
	r.resources.On("ExistsNameVersion", mock.Anything, "OrbitFit", "", uint(5)).Return(false, nil)
	r.categories.On("GetBySlugs", mock.Anything, []string(nil)).Return([]models.Category{}, nil)
	r.resources.On("Update", mock.Anything, existing).Return(nil)
	r.resources.On("ReplaceAssociations", mock.Anything, existing).Return(nil)
	r.submissions.On("Save", mock.Anything, sub).Return(nil)
	r.submissions.On("AddEvent", mock.Anything, mock.Anything).Return(nil)
	r.submissions.On("GetByID", mock.Anything, uint(9)).Return(sub, nil)

	_, err := svc.Transition(context.Background(), 9, TransitionInput{Action: "publish"}, "curator")
	require.NoError(t, err)

	assert.Equal(t, []string{"GPL-3.0"}, termsByKind(existing.Terms)[models.TermLicense])
	r.vocabulary.AssertNotCalled(t, "FindOrCreateTerm", mock.Anything, mock.Anything, mock.Anything)
}
