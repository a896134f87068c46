package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covergrid/portfolio-cli/internal/model"
)

var (
	importPoliciesPath string
	importProfilesPath string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk load policies and profiles from CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importPoliciesPath == "" && importProfilesPath == "" {
			return eris.New("import: at least one of --policies or --profiles is required")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if importProfilesPath != "" {
			profiles, err := readProfilesCSV(importProfilesPath)
			if err != nil {
				return err
			}
			n, err := env.Store.ImportProfiles(ctx, profiles)
			if err != nil {
				return eris.Wrap(err, "import: profiles")
			}
			zap.L().Info("profiles imported",
				zap.Int64("rows", n),
				zap.String("csv", importProfilesPath),
			)
		}

		if importPoliciesPath != "" {
			policies, err := readPoliciesCSV(importPoliciesPath)
			if err != nil {
				return err
			}
			n, err := env.Store.ImportPolicies(ctx, policies)
			if err != nil {
				return eris.Wrap(err, "import: policies")
			}
			zap.L().Info("policies imported",
				zap.Int64("rows", n),
				zap.String("csv", importPoliciesPath),
			)
		}

		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPoliciesPath, "policies", "", "path to policies CSV")
	importCmd.Flags().StringVar(&importProfilesPath, "profiles", "", "path to profiles CSV")
	rootCmd.AddCommand(importCmd)
}

func readPoliciesCSV(path string) ([]model.PolicyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "import: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return parsePoliciesCSV(f)
}

func readProfilesCSV(path string) ([]model.UserProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "import: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return parseProfilesCSV(f)
}

// parsePoliciesCSV reads rows of
// id,user_id,type,provider,premium,coverage,status,start_date[,end_date].
// The first row is treated as a header and skipped.
func parsePoliciesCSV(r io.Reader) ([]model.PolicyRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var policies []model.PolicyRecord
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "import: read policies CSV")
		}
		line++
		if line == 1 {
			continue // header
		}
		if len(row) < 8 {
			return nil, eris.Errorf("import: policies CSV line %d: want at least 8 fields, got %d", line, len(row))
		}

		premium, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "import: policies CSV line %d: premium", line)
		}
		coverage, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "import: policies CSV line %d: coverage", line)
		}
		startDate, err := time.Parse(time.DateOnly, row[7])
		if err != nil {
			return nil, eris.Wrapf(err, "import: policies CSV line %d: start_date", line)
		}

		p := model.PolicyRecord{
			ID:        row[0],
			UserID:    row[1],
			Type:      model.PolicyType(row[2]),
			Provider:  row[3],
			Premium:   premium,
			Coverage:  coverage,
			Status:    model.PolicyStatus(row[6]),
			StartDate: startDate,
		}
		if len(row) > 8 && row[8] != "" {
			endDate, err := time.Parse(time.DateOnly, row[8])
			if err != nil {
				return nil, eris.Wrapf(err, "import: policies CSV line %d: end_date", line)
			}
			p.EndDate = &endDate
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// parseProfilesCSV reads rows of user_id,date_of_birth. The first row is
// treated as a header and skipped.
func parseProfilesCSV(r io.Reader) ([]model.UserProfile, error) {
	cr := csv.NewReader(r)

	var profiles []model.UserProfile
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "import: read profiles CSV")
		}
		line++
		if line == 1 {
			continue // header
		}
		if len(row) < 2 {
			return nil, eris.Errorf("import: profiles CSV line %d: want 2 fields, got %d", line, len(row))
		}

		dob, err := time.Parse(time.DateOnly, row[1])
		if err != nil {
			return nil, eris.Wrapf(err, "import: profiles CSV line %d: date_of_birth", line)
		}
		profiles = append(profiles, model.UserProfile{UserID: row[0], DateOfBirth: dob})
	}
	return profiles, nil
}
