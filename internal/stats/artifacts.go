package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"autopoiesis/internal/model"
	"autopoiesis/internal/sim"
)

const runIndexFile = "run_index.json"

const (
	configFile  = "config.json"
	trialsFile  = "trials.json"
	summaryFile = "summary.json"
)

// LabeledConfig is one trial configuration of an experiment.
type LabeledConfig struct {
	Label  string          `json:"label"`
	Config sim.TrialConfig `json:"config"`
}

type RunConfig struct {
	RunID        string          `json:"run_id"`
	Kind         string          `json:"kind"`
	CreatedAtUTC string          `json:"created_at_utc"`
	BaseSeed     int64           `json:"base_seed"`
	Trials       int             `json:"trials"`
	Workers      int             `json:"workers"`
	Metric       string          `json:"metric"`
	Configs      []LabeledConfig `json:"configs"`
}

// TrialHistory is the step record stream of one trial.
type TrialHistory struct {
	Label   string             `json:"label"`
	Index   int                `json:"index"`
	Records []model.StepRecord `json:"-"`
}

type RunArtifacts struct {
	Config    RunConfig              `json:"config"`
	Trials    []model.TrialRecord    `json:"trials"`
	Summary   model.ExperimentRecord `json:"summary"`
	Histories []TrialHistory         `json:"-"`
}

type RunIndexEntry struct {
	RunID        string   `json:"run_id"`
	Kind         string   `json:"kind"`
	BaseSeed     int64    `json:"base_seed"`
	Trials       int      `json:"trials"`
	Workers      int      `json:"workers"`
	Metric       string   `json:"metric"`
	Ratio        *float64 `json:"ratio,omitempty"`
	Verdict      string   `json:"verdict,omitempty"`
	CreatedAtUTC string   `json:"created_at_utc"`
}

// HistoryFileName is the CSV name used for one trial's history.
func HistoryFileName(label string, index int) string {
	return fmt.Sprintf("history_%s_%d.csv", sanitizeLabel(label), index)
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, trialsFile), artifacts.Trials); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}
	for _, history := range artifacts.Histories {
		path := filepath.Join(runDir, HistoryFileName(history.Label, history.Index))
		if err := WriteHistoryCSV(path, history.Records); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies the JSON files of a run plus any history CSV and
// chart it holds.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, trialsFile, summaryFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, pattern := range []string{"history_*.csv", "*.html"} {
		matches, err := filepath.Glob(filepath.Join(src, pattern))
		if err != nil {
			return "", err
		}
		for _, match := range matches {
			if err := copyFile(match, filepath.Join(dst, filepath.Base(match))); err != nil {
				return "", err
			}
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadTrials(baseDir, runID string) ([]model.TrialRecord, bool, error) {
	var trials []model.TrialRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, trialsFile), &trials)
	return trials, ok, err
}

func ReadSummary(baseDir, runID string) (model.ExperimentRecord, bool, error) {
	var summary model.ExperimentRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

var historyHeader = []string{
	"step", "energy", "x", "y", "vx", "vy", "action", "source",
	"learned", "fed", "food_eaten", "gain", "reward", "cost", "epsilon",
}

func WriteHistoryCSV(path string, history []model.StepRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := EncodeHistoryCSV(file, history); err != nil {
		return err
	}
	return file.Sync()
}

func EncodeHistoryCSV(w io.Writer, history []model.StepRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(historyHeader); err != nil {
		return err
	}
	for _, r := range history {
		if err := writer.Write([]string{
			strconv.Itoa(r.Step),
			formatFloat(r.Energy),
			formatFloat(r.Position.X),
			formatFloat(r.Position.Y),
			formatFloat(r.Velocity.X),
			formatFloat(r.Velocity.Y),
			strconv.Itoa(int(r.Action)),
			string(r.Source),
			strconv.FormatBool(r.Learned),
			strconv.FormatBool(r.Fed),
			strconv.Itoa(r.FoodEaten),
			formatFloat(r.Gain),
			formatFloat(r.Reward),
			formatFloat(r.Cost),
			formatFloat(r.Epsilon),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadHistoryCSV(path string) ([]model.StepRecord, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	history, err := DecodeHistoryCSV(file)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return history, true, nil
}

func DecodeHistoryCSV(r io.Reader) ([]model.StepRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.StepRecord{}, nil
		}
		return nil, err
	}
	if len(header) != len(historyHeader) {
		return nil, fmt.Errorf("history header must have %d columns, got %d", len(historyHeader), len(header))
	}

	history := make([]model.StepRecord, 0, 1024)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		record, err := parseHistoryRow(row)
		if err != nil {
			return nil, fmt.Errorf("history row %d: %w", len(history)+1, err)
		}
		history = append(history, record)
	}
	return history, nil
}

func parseHistoryRow(row []string) (model.StepRecord, error) {
	p := rowParser{row: row}
	record := model.StepRecord{
		Step:      p.int(0),
		Energy:    p.float(1),
		Position:  model.Vec2{X: p.float(2), Y: p.float(3)},
		Velocity:  model.Vec2{X: p.float(4), Y: p.float(5)},
		Action:    model.Action(p.int(6)),
		Source:    model.ActionSource(row[7]),
		Learned:   p.bool(8),
		Fed:       p.bool(9),
		FoodEaten: p.int(10),
		Gain:      p.float(11),
		Reward:    p.float(12),
		Cost:      p.float(13),
		Epsilon:   p.float(14),
	}
	return record, p.err
}

// rowParser keeps the first conversion error so a row parses in one pass.
type rowParser struct {
	row []string
	err error
}

func (p *rowParser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.row[i], 64)
	p.keep(i, err)
	return v
}

func (p *rowParser) int(i int) int {
	v, err := strconv.Atoi(p.row[i])
	p.keep(i, err)
	return v
}

func (p *rowParser) bool(i int) bool {
	v, err := strconv.ParseBool(p.row[i])
	p.keep(i, err)
	return v
}

func (p *rowParser) keep(i int, err error) {
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", historyHeader[i], err)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sanitizeLabel(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return "trial"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, label)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
