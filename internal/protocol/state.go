package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"SwapSentinel/internal/model"
)

// Entry is one month of the distribution plan.
type Entry struct {
	Month    int             `json:"month"` // 1-12
	Profit   decimal.Decimal `json:"profit"`
	Reinvest decimal.Decimal `json:"reinvest"`  // reserve units sent to the sniper wallet
	TakeHome decimal.Decimal `json:"take_home"` // reference currency split across destinations
}

// Execution is the log written after a protocol run.
type Execution struct {
	Month       int                   `json:"month"`
	Profit      decimal.Decimal       `json:"profit"`
	Reinvest    decimal.Decimal       `json:"reinvest"`
	TakeHome    decimal.Decimal       `json:"take_home"`
	Date        time.Time             `json:"date"`
	Txs         map[string]string     `json:"txs"`
	ReinvestErr string                `json:"reinvest_error,omitempty"`
	Payout      *model.DispatchResult `json:"payout,omitempty"`
}

// LoadPlan reads the plan file. An empty or missing plan is an error.
func LoadPlan(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan []Entry
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if len(plan) == 0 {
		return nil, errors.New("plan is empty")
	}
	return plan, nil
}

// Current returns the entry for now's UTC month, or the last entry when the plan has none.
func Current(plan []Entry, now time.Time) Entry {
	month := int(now.UTC().Month())
	for _, e := range plan {
		if e.Month == month {
			return e
		}
	}
	return plan[len(plan)-1]
}

// LoadExecution reads the last execution log. ok is false when none exists.
func LoadExecution(path string) (Execution, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Execution{}, false, nil
		}
		return Execution{}, false, err
	}
	var exec Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return Execution{}, false, fmt.Errorf("parse execution log %s: %w", path, err)
	}
	return exec, true, nil
}

// SaveExecution writes the execution log atomically.
func SaveExecution(path string, exec Execution) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
