package broadcast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	mytoken "github.com/manzur349/my-token"
)

// LatestRecordName is the file that always holds the most recent run.
const LatestRecordName = "run-latest.json"

// RunRecord is the on-disk log of one run, laid out like Foundry's broadcast
// files: <dir>/<chainID>/run-<unix>-<runID>.json plus run-latest.json.
type RunRecord struct {
	RunID        string              `json:"runId"`
	Timestamp    int64               `json:"timestamp"`
	ChainID      uint64              `json:"chain"`
	Transactions []mytoken.TxRecord  `json:"transactions"`
	Deployment   *mytoken.Deployment `json:"deployment,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// NewRunRecord starts a record with a fresh run ID.
func NewRunRecord(now time.Time) *RunRecord {
	return &RunRecord{
		RunID:        uuid.NewString(),
		Timestamp:    now.Unix(),
		Transactions: []mytoken.TxRecord{},
	}
}

// Capture copies the session's chain and transactions into the record.
func (r *RunRecord) Capture(s *Session) {
	if s == nil {
		return
	}
	r.ChainID = s.chainID.Uint64()
	r.Transactions = s.Records()
}

// Fail stores err on the record. A nil err is ignored.
func (r *RunRecord) Fail(err error) {
	if err != nil {
		r.Error = err.Error()
	}
}

// HistoryName is the per-run file name. The run ID keeps runs started in the
// same second apart.
func (r *RunRecord) HistoryName() string {
	return fmt.Sprintf("run-%d-%s.json", r.Timestamp, r.RunID)
}

// WriteRecord writes rec under dir and returns the path of run-latest.json.
func WriteRecord(dir string, rec *RunRecord) (string, error) {
	chainDir := filepath.Join(dir, strconv.FormatUint(rec.ChainID, 10))
	if err := os.MkdirAll(chainDir, 0o755); err != nil {
		return "", fmt.Errorf("create broadcast directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run record: %w", err)
	}
	data = append(data, '\n')

	runPath := filepath.Join(chainDir, rec.HistoryName())
	if err := os.WriteFile(runPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write run record: %w", err)
	}

	latest := filepath.Join(chainDir, LatestRecordName)
	if err := os.WriteFile(latest, data, 0o644); err != nil {
		return "", fmt.Errorf("write latest run record: %w", err)
	}
	return latest, nil
}

// ReadRecord loads a run record written by WriteRecord.
func ReadRecord(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run record: %w", err)
	}
	return &rec, nil
}
