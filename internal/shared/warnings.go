package shared

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// WarningType represents different types of warnings
type WarningType int

const (
	CatalogMissWarning WarningType = iota
	MediaMissWarning
	DownloadFailedWarning
	ExtractionFailedWarning
	MalformedInputWarning
	PersistFailedWarning
)

// Warning represents a single warning with context
type Warning struct {
	Type    WarningType
	Message string
	Context string // Movie/track context
	Details string // Additional details like error message
}

// WarningCollector collects warnings during a pipeline run
type WarningCollector struct {
	mu       sync.Mutex
	warnings []Warning
	enabled  bool
}

// NewWarningCollector creates a new warning collector
func NewWarningCollector(enabled bool) *WarningCollector {
	return &WarningCollector{
		warnings: make([]Warning, 0),
		enabled:  enabled,
	}
}

// AddWarning adds a warning to the collector
func (wc *WarningCollector) AddWarning(warningType WarningType, context, message, details string) {
	if !wc.enabled {
		return
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.warnings = append(wc.warnings, Warning{
		Type:    warningType,
		Message: message,
		Context: context,
		Details: details,
	})
}

// AddCatalogMissWarning records a movie that resolved to no tracks
func (wc *WarningCollector) AddCatalogMissWarning(title, language string, year int) {
	context := fmt.Sprintf("%s (%s, %d)", title, language, year)
	wc.AddWarning(CatalogMissWarning, context, "No soundtrack found in catalog", "")
}

// AddMediaMissWarning records a track without a playable reference
func (wc *WarningCollector) AddMediaMissWarning(title, artist string) {
	context := fmt.Sprintf("%s - %s", artist, title)
	wc.AddWarning(MediaMissWarning, context, "No audio source found", "")
}

// AddDownloadFailedWarning records a failed audio download
func (wc *WarningCollector) AddDownloadFailedWarning(title, artist, details string) {
	context := fmt.Sprintf("%s - %s", artist, title)
	wc.AddWarning(DownloadFailedWarning, context, "Audio download failed", details)
}

// AddExtractionFailedWarning records a failed feature extraction
func (wc *WarningCollector) AddExtractionFailedWarning(title, artist, details string) {
	context := fmt.Sprintf("%s - %s", artist, title)
	wc.AddWarning(ExtractionFailedWarning, context, "Feature extraction failed", details)
}

// AddMalformedInputWarning records an unusable movie file or row
func (wc *WarningCollector) AddMalformedInputWarning(source, details string) {
	wc.AddWarning(MalformedInputWarning, source, "Malformed movie input", details)
}

// AddPersistFailedWarning records a record that could not be written
func (wc *WarningCollector) AddPersistFailedWarning(trackID, details string) {
	wc.AddWarning(PersistFailedWarning, trackID, "Could not persist record", details)
}

// HasWarnings returns true if there are any warnings
func (wc *WarningCollector) HasWarnings() bool {
	return wc.GetWarningCount() > 0
}

// GetWarningCount returns the total number of warnings
func (wc *WarningCollector) GetWarningCount() int {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return len(wc.warnings)
}

// GetWarningsByType returns warnings grouped by type
func (wc *WarningCollector) GetWarningsByType() map[WarningType][]Warning {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	grouped := make(map[WarningType][]Warning)
	for _, warning := range wc.warnings {
		grouped[warning.Type] = append(grouped[warning.Type], warning)
	}
	return grouped
}

// PrintSummary prints a formatted summary of all warnings to stdout
func (wc *WarningCollector) PrintSummary() {
	wc.WriteSummary(os.Stdout)
}

// WriteSummary writes the grouped warning summary to w
func (wc *WarningCollector) WriteSummary(w io.Writer) {
	count := wc.GetWarningCount()
	if count == 0 {
		return
	}

	ColorWarning.Fprintf(w, "\n⚠️  Warning Summary (%d warnings):\n", count)
	ColorWarning.Fprintln(w, strings.Repeat("─", 50))

	grouped := wc.GetWarningsByType()

	var types []WarningType
	for warningType := range grouped {
		types = append(types, warningType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, warningType := range types {
		writeWarningTypeSection(w, warningType, grouped[warningType])
	}
}

func writeWarningTypeSection(w io.Writer, warningType WarningType, warnings []Warning) {
	if len(warnings) == 0 {
		return
	}

	ColorHeader.Fprintf(w, "\n%s (%d):\n", warningTypeTitle(warningType), len(warnings))

	// Group similar warnings to avoid repetition
	contextCounts := make(map[string]int)
	for _, warning := range warnings {
		contextCounts[warning.Context]++
	}

	var contexts []string
	for context := range contextCounts {
		contexts = append(contexts, context)
	}
	sort.Strings(contexts)

	for _, context := range contexts {
		count := contextCounts[context]
		if count > 1 {
			ColorWarning.Fprintf(w, "  • %s (×%d)\n", context, count)
		} else {
			ColorWarning.Fprintf(w, "  • %s\n", context)
		}
	}
}

func warningTypeTitle(warningType WarningType) string {
	switch warningType {
	case CatalogMissWarning:
		return "Movies Without Catalog Soundtrack"
	case MediaMissWarning:
		return "Tracks Without Audio Source"
	case DownloadFailedWarning:
		return "Audio Download Failures"
	case ExtractionFailedWarning:
		return "Feature Extraction Failures"
	case MalformedInputWarning:
		return "Malformed Movie Input"
	case PersistFailedWarning:
		return "Persistence Failures"
	default:
		return "Other Warnings"
	}
}
