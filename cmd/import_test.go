package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergrid/portfolio-cli/internal/model"
)

func TestParsePoliciesCSV(t *testing.T) {
	input := `id,user_id,type,provider,premium,coverage,status,start_date,end_date
p1,u1,life,Acme Mutual,120.50,500000,active,2023-04-01,
p2,u1,auto,Roadstar,85,40000,lapsed,2020-01-15,2024-01-15
`
	policies, err := parsePoliciesCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, policies, 2)

	assert.Equal(t, "p1", policies[0].ID)
	assert.Equal(t, "u1", policies[0].UserID)
	assert.Equal(t, model.PolicyTypeLife, policies[0].Type)
	assert.Equal(t, "Acme Mutual", policies[0].Provider)
	assert.Equal(t, 120.50, policies[0].Premium)
	assert.Equal(t, 500000.0, policies[0].Coverage)
	assert.Equal(t, model.PolicyStatusActive, policies[0].Status)
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), policies[0].StartDate)
	assert.Nil(t, policies[0].EndDate)

	require.NotNil(t, policies[1].EndDate)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *policies[1].EndDate)
	assert.Equal(t, model.PolicyStatusLapsed, policies[1].Status)
}

func TestParsePoliciesCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"bad premium",
			"h\np1,u1,life,Acme,abc,500000,active,2023-04-01",
			"premium",
		},
		{
			"bad start date",
			"h\np1,u1,life,Acme,120,500000,active,04/01/2023",
			"start_date",
		},
		{
			"too few fields",
			"h\np1,u1,life",
			"at least 8 fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePoliciesCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseProfilesCSV(t *testing.T) {
	input := `user_id,date_of_birth
u1,1990-05-20
u2,1975-12-01
`
	profiles, err := parseProfilesCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "u1", profiles[0].UserID)
	assert.Equal(t, time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC), profiles[0].DateOfBirth)
	assert.Equal(t, "u2", profiles[1].UserID)
}

func TestParseProfilesCSVBadDate(t *testing.T) {
	_, err := parseProfilesCSV(strings.NewReader("h\nu1,May 20 1990"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date_of_birth")
}

func TestParseCSVHeaderOnly(t *testing.T) {
	policies, err := parsePoliciesCSV(strings.NewReader("id,user_id,type,provider,premium,coverage,status,start_date\n"))
	require.NoError(t, err)
	assert.Empty(t, policies)

	profiles, err := parseProfilesCSV(strings.NewReader("user_id,date_of_birth\n"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
