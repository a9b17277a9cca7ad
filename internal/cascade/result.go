package cascade

import (
	"encoding/json"
	"errors"
	"sort"

	"menucost/models"
)

var (
	ErrWorkspaceBusy = errors.New("cascade: another recalculation holds the workspace")
	ErrCancelled     = errors.New("cascade: recalculation cancelled")
)

// Entity kinds reported in results.
const (
	EntityIngredient = "ingredient"
	EntityRecipe     = "recipe"
	EntityProduct    = "product"
	EntityVariation  = "variation"
	EntitySizeCost   = "size_cost"
	EntityMenuEntry  = "menu_entry"
	EntityJob        = "job"
)

var entityRank = map[string]int{
	EntityJob:        0,
	EntityIngredient: 1,
	EntityVariation:  2,
	EntityRecipe:     3,
	EntityProduct:    4,
	EntitySizeCost:   5,
	EntityMenuEntry:  6,
}

// Job kinds persisted on RecalculationJob.Kind.
const (
	JobRecipes    = "recalculate_recipes"
	JobProducts   = "recalculate_products"
	JobVariations = "recalculate_variations"
	JobCascade    = "cascade"
)

// EntityError records why one entity could not be recomputed.
type EntityError struct {
	Kind     string `json:"kind"`
	EntityID uint   `json:"entityId"`
	Reason   string `json:"reason"`
}

// Counts tallies the outcome of one entity kind.
type Counts struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Result is returned to callers of every recalculation. Updated, Unchanged
// and Failed cover the job's primary entity kinds; Tally covers every kind
// touched, and Errors lists every failure.
type Result struct {
	JobID     string             `json:"jobId"`
	State     models.JobState    `json:"state"`
	Updated   int                `json:"updated"`
	Unchanged int                `json:"unchanged"`
	Failed    int                `json:"failed"`
	Errors    []EntityError      `json:"errors"`
	Tally     map[string]*Counts `json:"tally"`
}

func newResult() Result {
	return Result{Errors: []EntityError{}, Tally: make(map[string]*Counts)}
}

func (r *Result) counts(kind string) *Counts {
	c, ok := r.Tally[kind]
	if !ok {
		c = &Counts{}
		r.Tally[kind] = c
	}
	return c
}

func (r *Result) sortErrors() {
	sort.SliceStable(r.Errors, func(i, j int) bool {
		a, b := r.Errors[i], r.Errors[j]
		if a.Kind != b.Kind {
			return entityRank[a.Kind] < entityRank[b.Kind]
		}
		return a.EntityID < b.EntityID
	})
}

func (r *Result) summarize(primary map[string]bool) {
	r.Updated, r.Unchanged, r.Failed = 0, 0, 0
	for kind, c := range r.Tally {
		if !primary[kind] {
			continue
		}
		r.Updated += c.Updated
		r.Unchanged += c.Unchanged
		r.Failed += c.Failed
	}
}

// apply copies the outcome onto the persisted job row.
func (r Result) apply(job *models.RecalculationJob) {
	job.State = r.State
	job.Updated = r.Updated
	job.Unchanged = r.Unchanged
	job.Failed = r.Failed
	if len(r.Errors) == 0 {
		job.Errors = ""
		return
	}
	payload, err := json.Marshal(r.Errors)
	if err != nil {
		return
	}
	job.Errors = string(payload)
}

// DecodeJobErrors reads the error list stored on a job row.
func DecodeJobErrors(job models.RecalculationJob) ([]EntityError, error) {
	if job.Errors == "" {
		return []EntityError{}, nil
	}
	var out []EntityError
	if err := json.Unmarshal([]byte(job.Errors), &out); err != nil {
		return nil, err
	}
	return out, nil
}
