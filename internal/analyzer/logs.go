package analyzer

import (
	"fmt"

	"github.com/arolek/logmine/internal/config"
	"github.com/arolek/logmine/internal/logmine"
	"github.com/arolek/logmine/pkg/models"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
)

// LogsAnalyzer extracts metadata from OTLP logs, routing every log body
// through a logmine.Engine keyed by severity so that body templates never
// merge across severity levels.
type LogsAnalyzer struct {
	engine *logmine.Engine
}

// NewLogsAnalyzer creates a logs analyzer with no body pre-masking.
func NewLogsAnalyzer() *LogsAnalyzer {
	return &LogsAnalyzer{engine: logmine.NewEngine()}
}

// NewLogsAnalyzerWithPatterns creates a logs analyzer that pre-masks log
// bodies (timestamps, UUIDs, IPs, ...) before tokenizing them. A nil
// patterns slice disables pre-masking.
func NewLogsAnalyzerWithPatterns(patterns []config.CompiledPattern) *LogsAnalyzer {
	return &LogsAnalyzer{engine: logmine.NewEngineWithPatterns(patterns)}
}

// Engine exposes the underlying logmine.Engine, for callers (the REST API,
// session snapshotting) that need direct Param/Reparam/Snapshot access
// beyond what Analyze's aggregated LogMetadata carries.
func (a *LogsAnalyzer) Engine() *logmine.Engine { return a.engine }

// Analyze extracts metadata from an OTLP logs export request.
func (a *LogsAnalyzer) Analyze(req *collogspb.ExportLogsServiceRequest) ([]*models.LogMetadata, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	// Key format: "service|severity"
	logMap := make(map[string]*models.LogMetadata)

	for _, resourceLogs := range req.ResourceLogs {
		resourceAttrs := extractAttributes(resourceLogs.Resource.GetAttributes())
		serviceName := getServiceName(resourceAttrs)

		for _, scopeLogs := range resourceLogs.ScopeLogs {
			scopeInfo := &models.ScopeMetadata{
				Name:    scopeLogs.Scope.GetName(),
				Version: scopeLogs.Scope.GetVersion(),
			}

			for _, logRecord := range scopeLogs.LogRecords {
				severityText := logRecord.SeverityText
				if severityText == "" {
					severityText = "UNSET"
				}

				key := serviceName + "|" + severityText
				if _, exists := logMap[key]; !exists {
					logMap[key] = models.NewLogMetadata(severityText)
					logMap[key].ScopeInfo = scopeInfo
					logMap[key].Services[serviceName] = 0

					for resKey := range resourceAttrs {
						if logMap[key].ResourceKeys[resKey] == nil {
							logMap[key].ResourceKeys[resKey] = models.NewKeyMetadata()
						}
					}
				}

				metadata := logMap[key]
				metadata.SampleCount++
				metadata.Services[serviceName]++

				body := logRecord.GetBody().GetStringValue()
				if body != "" {
					a.engine.AddMessage(severityText, body)
				}

				logAttrs := extractAttributes(logRecord.Attributes)
				for attrKey, attrValue := range logAttrs {
					if metadata.AttributeKeys[attrKey] == nil {
						metadata.AttributeKeys[attrKey] = models.NewKeyMetadata()
					}
					metadata.AttributeKeys[attrKey].AddValue(attrValue)
				}

				for resKey, resValue := range resourceAttrs {
					if metadata.ResourceKeys[resKey] != nil {
						metadata.ResourceKeys[resKey].AddValue(resValue)
					}
				}
			}
		}
	}

	results := make([]*models.LogMetadata, 0, len(logMap))
	for _, metadata := range logMap {
		for _, keyMeta := range metadata.AttributeKeys {
			if metadata.SampleCount > 0 {
				keyMeta.Percentage = float64(keyMeta.Count) / float64(metadata.SampleCount) * 100
			}
		}
		for _, keyMeta := range metadata.ResourceKeys {
			if metadata.SampleCount > 0 {
				keyMeta.Percentage = float64(keyMeta.Count) / float64(metadata.SampleCount) * 100
			}
		}

		metadata.BodyTemplates = a.engine.Templates(metadata.Severity)
		results = append(results, metadata)
	}

	return results, nil
}
