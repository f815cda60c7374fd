// Package evidence scores how much of a user's skill claims are backed by
// verified proof records.
package evidence

import (
	"context"
	"math"
	"time"
)

// Proof review statuses.
const (
	StatusSubmitted         = "submitted"
	StatusVerified          = "verified"
	StatusRejected          = "rejected"
	StatusNeedsMoreEvidence = "needs_more_evidence"
)

// Proof types a record can carry.
const (
	ProofRepoURL     = "repo_url"
	ProofDeployedURL = "deployed_url"
	ProofCertificate = "certificate"
)

// Record is one submitted piece of evidence for a checklist item.
type Record struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ChecklistItemID  string    `json:"checklist_item_id"`
	SkillName        string    `json:"skill_name,omitempty"`
	Title            string    `json:"title,omitempty"`
	Status           string    `json:"status"`
	ProofType        string    `json:"proof_type"`
	ProofURL         string    `json:"proof_url,omitempty"`
	RepoVerified     bool      `json:"repo_verified"`
	ProficiencyLevel string    `json:"proficiency_level,omitempty"`
	CreatedAt        time.Time `json:"created_at"`

	RepoVerification *RepoVerification `json:"repo_verification,omitempty"`
}

// RepoVerification is the result of checking a proof's repository against
// the skills it claims.
type RepoVerification struct {
	RepoURL       string    `json:"repo_url"`
	Verified      bool      `json:"verified"`
	MatchedSkills []string  `json:"matched_skills"`
	Confidence    float64   `json:"confidence"`
	FilesChecked  []string  `json:"files_checked"`
	CheckedAt     time.Time `json:"checked_at"`
}

// ScoreResult is the verification score plus the counts behind it.
type ScoreResult struct {
	Score        float64 `json:"score"`
	Total        int     `json:"total"`
	Verified     int     `json:"verified"`
	RepoVerified int     `json:"repo_verified"`
}

// Store reads proof records. Scoring never writes.
type Store interface {
	ProofsForUser(ctx context.Context, userID string) ([]Record, error)
	VerifiedSkillNames(ctx context.Context, userID string) ([]string, error)
}

// Annotator attaches repository verification results to an existing proof.
type Annotator interface {
	AnnotateRepoVerification(ctx context.Context, proofID string, rv RepoVerification) error
}

// Score weighs manually verified proofs over repository-verified ones.
// An empty record set scores zero rather than erroring, so a brand new
// user just reads as unproven.
func Score(records []Record) ScoreResult {
	result := ScoreResult{Total: len(records)}
	if result.Total == 0 {
		return result
	}

	for _, rec := range records {
		if rec.Status == StatusVerified {
			result.Verified++
		}
		if rec.RepoVerified {
			result.RepoVerified++
		}
	}

	total := float64(result.Total)
	verifiedRatio := float64(result.Verified) / total
	repoRatio := float64(result.RepoVerified) / total

	result.Score = math.Max(0, math.Min(100, (0.7*verifiedRatio+0.3*repoRatio)*100))
	return result
}
