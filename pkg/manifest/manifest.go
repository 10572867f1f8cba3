// Package manifest defines the recovery manifest written beside the
// reconstructed image. It is the audit trail reporting and filesystem
// extraction tooling consume, so field names are part of the contract.
package manifest

import (
	"time"

	"github.com/google/uuid"
)

// Status of one logical block after reconstruction.
type Status string

const (
	StatusRecovered     Status = "recovered"
	StatusUnrecoverable Status = "unrecoverable"
	StatusAmbiguous     Status = "ambiguous"
)

// Provenance identifies the physical page that supplied (or contended
// for) a logical block.
type Provenance struct {
	Bank          int    `json:"bank"`
	PhysicalBlock int    `json:"physical_block"`
	Sequence      uint32 `json:"sequence"`
}

// Block is the per-logical-index outcome. Unresolved blocks keep their
// entry; they are never overwritten with a default.
type Block struct {
	Logical int    `json:"logical"`
	Status  Status `json:"status"`
	// Source is set for recovered blocks; Candidates lists the tied
	// records of an ambiguous block.
	Source     *Provenance  `json:"source,omitempty"`
	Candidates []Provenance `json:"candidates,omitempty"`
}

// BankInfo describes one input pair as consumed.
type BankInfo struct {
	Main      string `json:"main"`
	OOB       string `json:"oob"`
	Pages     int    `json:"pages"`
	BadBlocks int    `json:"bad_blocks"`
}

// Summary holds the aggregate counts operators triage first.
type Summary struct {
	TotalBlocks   int `json:"total_blocks"`
	Recovered     int `json:"recovered"`
	Unrecoverable int `json:"unrecoverable"`
	Ambiguous     int `json:"ambiguous"`
	BadBlocks     int `json:"bad_blocks"`
}

// Manifest is append-only while reconstruction runs and frozen at
// completion.
type Manifest struct {
	RunID      string    `json:"run_id"`
	Model      string    `json:"model"`
	Variant    string    `json:"variant"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Banks      []BankInfo `json:"banks"`
	Summary    Summary    `json:"summary"`
	Unresolved []int      `json:"unresolved"`
	Blocks     []Block    `json:"blocks"`

	frozen bool
}

// New starts a manifest for one extraction run.
func New(model, variant string) *Manifest {
	return &Manifest{
		RunID:      uuid.NewString(),
		Model:      model,
		Variant:    variant,
		StartedAt:  time.Now().UTC(),
		Unresolved: []int{},
	}
}

// AddBank records an input pair and its bad-block count.
func (m *Manifest) AddBank(b BankInfo) {
	m.mustMutable()
	m.Banks = append(m.Banks, b)
	m.Summary.BadBlocks += b.BadBlocks
}

// AddRecovered records a resolved logical block and its winning source.
func (m *Manifest) AddRecovered(logical int, src Provenance) {
	m.mustMutable()
	m.Blocks = append(m.Blocks, Block{Logical: logical, Status: StatusRecovered, Source: &src})
	m.Summary.TotalBlocks++
	m.Summary.Recovered++
}

// AddUnrecoverable records a logical block with no eligible candidate.
func (m *Manifest) AddUnrecoverable(logical int) {
	m.mustMutable()
	m.Blocks = append(m.Blocks, Block{Logical: logical, Status: StatusUnrecoverable})
	m.Unresolved = append(m.Unresolved, logical)
	m.Summary.TotalBlocks++
	m.Summary.Unrecoverable++
}

// AddAmbiguous records a logical block whose candidates tied on sequence
// number. No winner is chosen; the tie is surfaced for operator review.
func (m *Manifest) AddAmbiguous(logical int, candidates []Provenance) {
	m.mustMutable()
	m.Blocks = append(m.Blocks, Block{Logical: logical, Status: StatusAmbiguous, Candidates: candidates})
	m.Unresolved = append(m.Unresolved, logical)
	m.Summary.TotalBlocks++
	m.Summary.Ambiguous++
}

// Freeze stamps completion and rejects further mutation.
func (m *Manifest) Freeze() {
	m.FinishedAt = time.Now().UTC()
	m.frozen = true
}

// Degraded reports whether the run completed with per-block findings an
// operator must review.
func (m *Manifest) Degraded() bool {
	return m.Summary.Unrecoverable > 0 || m.Summary.Ambiguous > 0
}

func (m *Manifest) mustMutable() {
	if m.frozen {
		panic("manifest: mutation after freeze")
	}
}
