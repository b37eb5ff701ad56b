// Package host implements the coverage collector that runs against the
// instrumented test host, plus the settings document that configures it.
package host

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Settings is the collector configuration payload. It travels opaquely
// inside the run-settings document and is decoded host-side.
type Settings struct {
	Capture   bool
	MutantMap map[int][]string // mutant id -> covering test ids
	Namespace string           // package name of the injected runtime control type
}

// RunSettings is the XML-like document handed to the test platform: run
// configuration plus the data-collector block referencing the coverage
// collector.
type RunSettings struct {
	Concurrency            int
	TimeoutMS              int64
	TargetFramework        string
	TargetPlatform         string // omitted when default
	TestCaseFilter         string
	DesignMode             bool
	DisableParallelization bool
	Collector              Settings
}

const collectorFriendlyName = "StrykrCoverage"

type runSettingsXML struct {
	XMLName          xml.Name            `xml:"RunSettings"`
	RunConfiguration runConfigurationXML `xml:"RunConfiguration"`
	DataCollection   dataCollectionXML   `xml:"DataCollectionRunSettings"`
}

type runConfigurationXML struct {
	MaxCpuCount            int    `xml:"MaxCpuCount"`
	TestSessionTimeout     int64  `xml:"TestSessionTimeout"`
	TargetFramework        string `xml:"TargetFrameworkVersion,omitempty"`
	TargetPlatform         string `xml:"TargetPlatform,omitempty"`
	TestCaseFilter         string `xml:"TestCaseFilter,omitempty"`
	DesignMode             bool   `xml:"DesignMode"`
	DisableParallelization bool   `xml:"DisableParallelization"`
}

type dataCollectionXML struct {
	Collectors []dataCollectorXML `xml:"DataCollectors>DataCollector"`
}

type dataCollectorXML struct {
	FriendlyName  string           `xml:"friendlyName,attr"`
	Configuration configurationXML `xml:"Configuration"`
}

type configurationXML struct {
	CaptureCoverage bool           `xml:"CaptureCoverage"`
	HelperNamespace string         `xml:"HelperNamespace"`
	MutantMap       []mutantMapXML `xml:"MutantMap>Mutant"`
}

type mutantMapXML struct {
	ID    int    `xml:"id,attr"`
	Tests string `xml:"tests,attr"`
}

// EncodeRunSettings renders the document. The target platform element is
// omitted for the default platform, matching the settings contract.
func EncodeRunSettings(s RunSettings) ([]byte, error) {
	doc := runSettingsXML{
		RunConfiguration: runConfigurationXML{
			MaxCpuCount:            s.Concurrency,
			TestSessionTimeout:     s.TimeoutMS,
			TargetFramework:        s.TargetFramework,
			TargetPlatform:         normalizePlatform(s.TargetPlatform),
			TestCaseFilter:         s.TestCaseFilter,
			DesignMode:             s.DesignMode,
			DisableParallelization: s.DisableParallelization,
		},
		DataCollection: dataCollectionXML{
			Collectors: []dataCollectorXML{{
				FriendlyName: collectorFriendlyName,
				Configuration: configurationXML{
					CaptureCoverage: s.Collector.Capture,
					HelperNamespace: s.Collector.Namespace,
					MutantMap:       encodeMutantMap(s.Collector.MutantMap),
				},
			}},
		},
	}

	return xml.MarshalIndent(doc, "", "  ")
}

// DecodeRunSettings parses a settings document back into RunSettings.
func DecodeRunSettings(data []byte) (RunSettings, error) {
	var doc runSettingsXML

	if err := xml.Unmarshal(data, &doc); err != nil {
		return RunSettings{}, fmt.Errorf("decode run settings: %w", err)
	}

	settings := RunSettings{
		Concurrency:            doc.RunConfiguration.MaxCpuCount,
		TimeoutMS:              doc.RunConfiguration.TestSessionTimeout,
		TargetFramework:        doc.RunConfiguration.TargetFramework,
		TargetPlatform:         doc.RunConfiguration.TargetPlatform,
		TestCaseFilter:         doc.RunConfiguration.TestCaseFilter,
		DesignMode:             doc.RunConfiguration.DesignMode,
		DisableParallelization: doc.RunConfiguration.DisableParallelization,
	}

	for _, collector := range doc.DataCollection.Collectors {
		if collector.FriendlyName != collectorFriendlyName {
			continue
		}

		settings.Collector = Settings{
			Capture:   collector.Configuration.CaptureCoverage,
			Namespace: collector.Configuration.HelperNamespace,
			MutantMap: decodeMutantMap(collector.Configuration.MutantMap),
		}
	}

	return settings, nil
}

func normalizePlatform(platform string) string {
	if platform == "AnyCPU" || platform == "Default" {
		return ""
	}

	return platform
}

func encodeMutantMap(mutantMap map[int][]string) []mutantMapXML {
	ids := make([]int, 0, len(mutantMap))
	for id := range mutantMap {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	entries := make([]mutantMapXML, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, mutantMapXML{ID: id, Tests: strings.Join(mutantMap[id], ",")})
	}

	return entries
}

func decodeMutantMap(entries []mutantMapXML) map[int][]string {
	if len(entries) == 0 {
		return nil
	}

	mutantMap := make(map[int][]string, len(entries))

	for _, entry := range entries {
		var tests []string

		for _, t := range strings.Split(entry.Tests, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tests = append(tests, t)
			}
		}

		mutantMap[entry.ID] = tests
	}

	return mutantMap
}

// PropertyCoverage and PropertyOutOfTests are the property names under which
// the collector ships coverage back through the test platform.
const (
	PropertyCoverage   = "Coverage"
	PropertyOutOfTests = "OutOfTests"
)

// FormatCoverage renders the per-test coverage property value:
// "<normal_ids>;<static_ids>", both sides comma-separated and possibly empty.
func FormatCoverage(normal, static []int) string {
	return formatIDs(normal) + ";" + formatIDs(static)
}

// ParseCoverage is the inverse of FormatCoverage.
func ParseCoverage(value string) (normal, static []int, err error) {
	left, right, found := strings.Cut(value, ";")
	if !found {
		return nil, nil, fmt.Errorf("malformed coverage property %q", value)
	}

	if normal, err = parseIDs(left); err != nil {
		return nil, nil, err
	}

	if static, err = parseIDs(right); err != nil {
		return nil, nil, err
	}

	return normal, static, nil
}

// FormatIDList renders the OutOfTests property value.
func FormatIDList(ids []int) string {
	return formatIDs(ids)
}

// ParseIDList parses a bare comma-separated id list.
func ParseIDList(value string) ([]int, error) {
	return parseIDs(value)
}

func formatIDs(ids []int) string {
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}

	return strings.Join(parts, ",")
}

func parseIDs(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	var ids []int

	for _, part := range strings.Split(value, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("malformed id %q: %w", part, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}
