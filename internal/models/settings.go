// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Units
const (
	UnitMgdl = "mg/dL"
	UnitMmol = "mmol/L"
)

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-" yaml:"-"`

	// Connection settings
	NightscoutURL   string `json:"nightscoutUrl" yaml:"nightscoutUrl"`
	APISecret       string `json:"apiSecret" yaml:"apiSecret"`             // Plain API secret (will be hashed)
	APIToken        string `json:"apiToken" yaml:"apiToken"`               // Token-based auth
	UseToken        bool   `json:"useToken" yaml:"useToken"`               // Use token instead of secret
	RefreshInterval int    `json:"refreshInterval" yaml:"refreshInterval"` // Seconds (30-600)

	// Display settings
	Unit string `json:"unit" yaml:"unit"` // "mg/dL" or "mmol/L", labels only

	// Threshold lines and dot coloring (mg/dL)
	LowGlucose  float64 `json:"lowGlucose" yaml:"lowGlucose"`
	HighGlucose float64 `json:"highGlucose" yaml:"highGlucose"`
	UrgentLow   float64 `json:"urgentLow" yaml:"urgentLow"`
	UrgentHigh  float64 `json:"urgentHigh" yaml:"urgentHigh"`

	// Chart settings
	Hours             int     `json:"hours" yaml:"hours"`             // Lookback hours (default 24)
	ScreenHours       int     `json:"screenHours" yaml:"screenHours"` // Visible hours (default 6)
	Smooth            bool    `json:"smooth" yaml:"smooth"`           // Also draw unsmoothed readings
	DisplayXGridLines bool    `json:"displayXgridLines" yaml:"displayXgridLines"`
	DisplayYGridLines bool    `json:"displayYgridLines" yaml:"displayYgridLines"`
	ThresholdLines    bool    `json:"thresholdLines" yaml:"thresholdLines"`
	MaxBasal          float64 `json:"maxBasal" yaml:"maxBasal"` // Pump configured max basal (U/h)
	ChartWidth        int     `json:"chartWidth" yaml:"chartWidth"`
	ChartHeight       int     `json:"chartHeight" yaml:"chartHeight"`
	ChartColorInRange string  `json:"chartColorInRange" yaml:"chartColorInRange"` // Hex color
	ChartColorHigh    string  `json:"chartColorHigh" yaml:"chartColorHigh"`
	ChartColorLow     string  `json:"chartColorLow" yaml:"chartColorLow"`
	ChartColorUrgent  string  `json:"chartColorUrgent" yaml:"chartColorUrgent"`

	// Service settings
	ListenAddr string `json:"listenAddr" yaml:"listenAddr"`
	InputFile  string `json:"inputFile" yaml:"inputFile"` // Snapshot file watched for changes
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Unit:            UnitMgdl,
		RefreshInterval: 60, // 1 minute default

		LowGlucose:  70,
		HighGlucose: 180,
		UrgentLow:   55,
		UrgentHigh:  250,

		Hours:             24,
		ScreenHours:       6,
		Smooth:            false,
		DisplayXGridLines: true,
		DisplayYGridLines: true,
		ThresholdLines:    true,
		MaxBasal:          2,
		ChartWidth:        390,
		ChartHeight:       320,
		ChartColorInRange: "#4ade80", // Green
		ChartColorHigh:    "#facc15", // Yellow
		ChartColorLow:     "#f97316", // Orange
		ChartColorUrgent:  "#ef4444", // Red

		ListenAddr: ":8090",
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "loopchart")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from the default config path
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFile(path)
}

// LoadFile loads settings from path. YAML is used for .yaml/.yml files,
// JSON otherwise. A missing file leaves the defaults in place.
func (s *Settings) LoadFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is chosen by the operator
	if err != nil {
		if os.IsNotExist(err) {
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return fmt.Errorf("reading settings: %w", err)
	}

	if isYAML(path) {
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parsing settings: %w", err)
		}
	} else if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}

	s.ensureDefaults()
	return nil
}

// LoadSettingsFile returns defaults overlaid with the contents of path
func LoadSettingsFile(path string) (*Settings, error) {
	s := DefaultSettings()
	if err := s.LoadFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Save saves settings to the default config path
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveFile(path)
}

// SaveFile writes settings to path in the format implied by its extension
func (s *Settings) SaveFile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ensureDefaults repairs values that would break the chart geometry.
// The caller must hold the write lock.
func (s *Settings) ensureDefaults() {
	def := DefaultSettings()

	if s.Unit != UnitMgdl && s.Unit != UnitMmol {
		s.Unit = def.Unit
	}
	if s.Hours <= 0 {
		s.Hours = def.Hours
	}
	if s.ScreenHours <= 0 {
		s.ScreenHours = def.ScreenHours
	}
	if s.ChartWidth <= 0 {
		s.ChartWidth = def.ChartWidth
	}
	if s.ChartHeight <= 0 {
		s.ChartHeight = def.ChartHeight
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = def.RefreshInterval
	}
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.NightscoutURL = other.NightscoutURL
	s.APISecret = other.APISecret
	s.APIToken = other.APIToken
	s.UseToken = other.UseToken
	s.RefreshInterval = other.RefreshInterval
	s.Unit = other.Unit
	s.LowGlucose = other.LowGlucose
	s.HighGlucose = other.HighGlucose
	s.UrgentLow = other.UrgentLow
	s.UrgentHigh = other.UrgentHigh
	s.Hours = other.Hours
	s.ScreenHours = other.ScreenHours
	s.Smooth = other.Smooth
	s.DisplayXGridLines = other.DisplayXGridLines
	s.DisplayYGridLines = other.DisplayYGridLines
	s.ThresholdLines = other.ThresholdLines
	s.MaxBasal = other.MaxBasal
	s.ChartWidth = other.ChartWidth
	s.ChartHeight = other.ChartHeight
	s.ChartColorInRange = other.ChartColorInRange
	s.ChartColorHigh = other.ChartColorHigh
	s.ChartColorLow = other.ChartColorLow
	s.ChartColorUrgent = other.ChartColorUrgent
	s.ListenAddr = other.ListenAddr
	s.InputFile = other.InputFile
}

// IsConfigured returns true if a Nightscout source is set
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.NightscoutURL != ""
}

// GetGlucoseStatus returns the status string for a glucose value
func (s *Settings) GetGlucoseStatus(mgdl float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case mgdl <= s.UrgentLow:
		return StatusUrgentLow
	case mgdl <= s.LowGlucose:
		return StatusLow
	case mgdl >= s.UrgentHigh:
		return StatusUrgentHigh
	case mgdl >= s.HighGlucose:
		return StatusHigh
	default:
		return StatusNormal
	}
}
