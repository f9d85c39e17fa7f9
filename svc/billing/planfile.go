package billing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlanFile wraps any failure to parse or validate a plan seed file.
var ErrInvalidPlanFile = errors.New("invalid plan file")

// planFileEntry mirrors one plan in the YAML seed file. Prices are in
// cents, quota zero means unlimited, matching the Plan entity.
type planFileEntry struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	MonthlyPrice   int64    `yaml:"monthly_price"`
	YearlyPrice    int64    `yaml:"yearly_price"`
	Features       []string `yaml:"features"`
	MaxProjects    int64    `yaml:"max_projects"`
	MaxStorageMB   int64    `yaml:"max_storage_mb"`
	MaxTeamMembers int64    `yaml:"max_team_members"`
	IsActive       *bool    `yaml:"is_active"`
}

type planFile struct {
	Plans []planFileEntry `yaml:"plans"`
}

// LoadPlansFile parses a YAML plan catalog. Entries without an id get a
// deterministic UUID derived from the plan name, so repeated seeding of
// the same file is idempotent.
func LoadPlansFile(path string) ([]Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidPlanFile, err)
	}
	return ParsePlans(raw)
}

// ParsePlans parses YAML plan catalog bytes. See LoadPlansFile.
func ParsePlans(raw []byte) ([]Plan, error) {
	var file planFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrInvalidPlanFile, err)
	}
	if len(file.Plans) == 0 {
		return nil, errors.Join(ErrInvalidPlanFile, errors.New("no plans defined"))
	}

	now := time.Now()
	plans := make([]Plan, 0, len(file.Plans))
	seen := make(map[string]struct{}, len(file.Plans))
	for i, entry := range file.Plans {
		if entry.Name == "" {
			return nil, errors.Join(ErrInvalidPlanFile, fmt.Errorf("plan %d: name is required", i))
		}
		if _, ok := seen[entry.Name]; ok {
			return nil, errors.Join(ErrInvalidPlanFile, fmt.Errorf("plan %q: duplicate name", entry.Name))
		}
		seen[entry.Name] = struct{}{}
		if entry.MonthlyPrice < 0 || entry.YearlyPrice < 0 {
			return nil, errors.Join(ErrInvalidPlanFile, fmt.Errorf("plan %q: negative price", entry.Name))
		}
		if entry.MaxProjects < 0 || entry.MaxStorageMB < 0 || entry.MaxTeamMembers < 0 {
			return nil, errors.Join(ErrInvalidPlanFile, fmt.Errorf("plan %q: negative quota", entry.Name))
		}

		id, err := planID(entry)
		if err != nil {
			return nil, errors.Join(ErrInvalidPlanFile, fmt.Errorf("plan %q: %w", entry.Name, err))
		}

		active := true
		if entry.IsActive != nil {
			active = *entry.IsActive
		}

		plans = append(plans, Plan{
			ID:             id,
			Name:           entry.Name,
			Description:    entry.Description,
			MonthlyPrice:   Money(entry.MonthlyPrice),
			YearlyPrice:    Money(entry.YearlyPrice),
			Features:       entry.Features,
			MaxProjects:    entry.MaxProjects,
			MaxStorageMB:   entry.MaxStorageMB,
			MaxTeamMembers: entry.MaxTeamMembers,
			IsActive:       active,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return plans, nil
}

// planNamespace scopes name-derived plan IDs to this engine.
var planNamespace = uuid.MustParse("8f3c2b1a-5d6e-4f70-9a81-2b3c4d5e6f70")

func planID(entry planFileEntry) (uuid.UUID, error) {
	if entry.ID != "" {
		return uuid.Parse(entry.ID)
	}
	return uuid.NewSHA1(planNamespace, []byte(entry.Name)), nil
}

// SeedPlans inserts the given plans, skipping any whose ID already
// exists. Returns the number of plans actually created.
func SeedPlans(ctx context.Context, store Store, plans []Plan) (int, error) {
	created := 0
	for _, plan := range plans {
		if _, err := store.GetPlan(ctx, plan.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrPlanNotFound) {
			return created, err
		}
		if err := store.CreatePlan(ctx, plan); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
