// Package memory provides an in-memory storage implementation for metadata.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/arolek/logmine/internal/analyzer/autotemplate"
	"github.com/arolek/logmine/pkg/models"
)

var (
	// ErrNotFound is returned when a requested item is not found; it is
	// models.ErrNotFound, so callers can match it through the Storage interface.
	ErrNotFound = models.ErrNotFound
)

// Store is an in-memory storage for telemetry metadata.
type Store struct {
	// Metrics storage: metric name -> metadata
	metrics map[string]*models.MetricMetadata
	metricsmu sync.RWMutex

	// Spans storage: span name -> metadata
	spans map[string]*models.SpanMetadata
	spansmu sync.RWMutex

	// Logs storage: severity text -> metadata
	logs map[string]*models.LogMetadata
	logsmu sync.RWMutex

	// Services tracks all service names seen
	services map[string]struct{}
	servicesmu sync.RWMutex

	// Attributes storage: attribute key -> metadata
	attributes map[string]*models.AttributeMetadata
	attributesmu sync.RWMutex

	useAutoTemplate bool
	autoTemplateCfg autotemplate.Config
}

// New creates a new in-memory store with autotemplate off (span names are
// then mined with the Drain miner's default settings).
func New() *Store {
	return NewWithAutoTemplate(false)
}

// NewWithAutoTemplate creates a new in-memory store, recording whether span
// name mining should use the store's Drain configuration (useAutoTemplate;
// the configuration is always autotemplate.DefaultConfig()) so that callers
// reading AutoTemplateCfg back off of the Storage interface (the receivers,
// when constructing a SpanNameAnalyzer) agree with how this store was set up.
func NewWithAutoTemplate(useAutoTemplate bool) *Store {
	return &Store{
		metrics:         make(map[string]*models.MetricMetadata),
		spans:           make(map[string]*models.SpanMetadata),
		logs:            make(map[string]*models.LogMetadata),
		services:        make(map[string]struct{}),
		attributes:      make(map[string]*models.AttributeMetadata),
		useAutoTemplate: useAutoTemplate,
		autoTemplateCfg: autotemplate.DefaultConfig(),
	}
}

// UseAutoTemplate returns whether span names are mined with AutoTemplateCfg
// rather than the Drain defaults.
func (s *Store) UseAutoTemplate() bool {
	return s.useAutoTemplate
}

// AutoTemplateCfg returns the Drain miner configuration.
func (s *Store) AutoTemplateCfg() autotemplate.Config {
	return s.autoTemplateCfg
}

// Close is a no-op; the in-memory store holds no external resources.
func (s *Store) Close() error {
	return nil
}

// StoreMetric stores or updates metric metadata.
func (s *Store) StoreMetric(ctx context.Context, metric *models.MetricMetadata) error {
	if metric == nil {
		return errors.New("metric cannot be nil")
	}
	if metric.Name == "" {
		return errors.New("metric name cannot be empty")
	}

	s.metricsmu.Lock()
	defer s.metricsmu.Unlock()

	// Track services
	s.trackServices(metric.Services)

	// If metric exists, merge with existing
	if existing, exists := s.metrics[metric.Name]; exists {
		existing.MergeMetricMetadata(metric)
		return nil
	}

	// Store new metric
	s.metrics[metric.Name] = metric
	return nil
}

// GetMetric retrieves metric metadata by name.
func (s *Store) GetMetric(ctx context.Context, name string) (*models.MetricMetadata, error) {
	s.metricsmu.RLock()
	defer s.metricsmu.RUnlock()

	metric, exists := s.metrics[name]
	if !exists {
		return nil, fmt.Errorf("metric %s: %w", name, ErrNotFound)
	}

	return metric, nil
}

// ListMetrics returns all metrics, optionally filtered by service name.
func (s *Store) ListMetrics(ctx context.Context, serviceName string) ([]*models.MetricMetadata, error) {
	s.metricsmu.RLock()
	defer s.metricsmu.RUnlock()

	metrics := make([]*models.MetricMetadata, 0, len(s.metrics))
	for _, metric := range s.metrics {
		// Filter by service if specified
		if serviceName != "" {
			if _, hasService := metric.Services[serviceName]; !hasService {
				continue
			}
		}
		metrics = append(metrics, metric)
	}

	// Sort by name for consistency
	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Name < metrics[j].Name
	})

	return metrics, nil
}

// StoreSpan stores or updates span metadata.
func (s *Store) StoreSpan(ctx context.Context, span *models.SpanMetadata) error {
	if span == nil {
		return errors.New("span cannot be nil")
	}
	if span.Name == "" {
		return errors.New("span name cannot be empty")
	}

	s.spansmu.Lock()
	defer s.spansmu.Unlock()

	// Track services
	s.trackServices(span.Services)

	// If span exists, merge with existing
	if existing, exists := s.spans[span.Name]; exists {
		// Update span count
		existing.SampleCount += span.SampleCount

		// Merge attribute keys
		for key, keyMeta := range span.AttributeKeys {
			if existingKey, exists := existing.AttributeKeys[key]; exists {
				existingKey.Count += keyMeta.Count
			} else {
				existing.AttributeKeys[key] = keyMeta
			}
		}

		// Merge resource keys
		for key, keyMeta := range span.ResourceKeys {
			if existingKey, exists := existing.ResourceKeys[key]; exists {
				existingKey.Count += keyMeta.Count
			} else {
				existing.ResourceKeys[key] = keyMeta
			}
		}

		// Merge services
		for service, count := range span.Services {
			existing.Services[service] += count
		}

		return nil
	}

	// Store new span
	s.spans[span.Name] = span
	return nil
}

// GetSpan retrieves span metadata by name.
func (s *Store) GetSpan(ctx context.Context, name string) (*models.SpanMetadata, error) {
	s.spansmu.RLock()
	defer s.spansmu.RUnlock()

	span, exists := s.spans[name]
	if !exists {
		return nil, fmt.Errorf("span %s: %w", name, ErrNotFound)
	}

	return span, nil
}

// ListSpans returns all spans, optionally filtered by service name.
func (s *Store) ListSpans(ctx context.Context, serviceName string) ([]*models.SpanMetadata, error) {
	s.spansmu.RLock()
	defer s.spansmu.RUnlock()

	spans := make([]*models.SpanMetadata, 0, len(s.spans))
	for _, span := range s.spans {
		// Filter by service if specified
		if serviceName != "" {
			if _, hasService := span.Services[serviceName]; !hasService {
				continue
			}
		}
		spans = append(spans, span)
	}

	// Sort by name for consistency
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Name < spans[j].Name
	})

	return spans, nil
}

// StoreLog stores or updates log metadata.
func (s *Store) StoreLog(ctx context.Context, log *models.LogMetadata) error {
	if log == nil {
		return errors.New("log cannot be nil")
	}

	s.logsmu.Lock()
	defer s.logsmu.Unlock()

	// Track services
	s.trackServices(log.Services)

	key := log.Severity
	if key == "" {
		key = "UNSET"
	}

	// If log exists, merge with existing
	if existing, exists := s.logs[key]; exists {
		// Update sample count
		existing.SampleCount += log.SampleCount

		// Merge attribute keys
		for key, keyMeta := range log.AttributeKeys {
			if existingKey, exists := existing.AttributeKeys[key]; exists {
				existingKey.Count += keyMeta.Count
			} else {
				existing.AttributeKeys[key] = keyMeta
			}
		}

		// Merge resource keys
		for key, keyMeta := range log.ResourceKeys {
			if existingKey, exists := existing.ResourceKeys[key]; exists {
				existingKey.Count += keyMeta.Count
			} else {
				existing.ResourceKeys[key] = keyMeta
			}
		}

		// Merge services
		for service, count := range log.Services {
			existing.Services[service] += count
		}

		return nil
	}

	// Store new log
	s.logs[key] = log
	return nil
}

// GetLog retrieves log metadata by severity text.
func (s *Store) GetLog(ctx context.Context, severityText string) (*models.LogMetadata, error) {
	s.logsmu.RLock()
	defer s.logsmu.RUnlock()

	if severityText == "" {
		severityText = "UNSET"
	}

	log, exists := s.logs[severityText]
	if !exists {
		return nil, fmt.Errorf("log severity %s: %w", severityText, ErrNotFound)
	}

	return log, nil
}

// ListLogs returns all log metadata, optionally filtered by service name.
func (s *Store) ListLogs(ctx context.Context, serviceName string) ([]*models.LogMetadata, error) {
	s.logsmu.RLock()
	defer s.logsmu.RUnlock()

	logs := make([]*models.LogMetadata, 0, len(s.logs))
	for _, log := range s.logs {
		// Filter by service if specified
		if serviceName != "" {
			if _, hasService := log.Services[serviceName]; !hasService {
				continue
			}
		}
		logs = append(logs, log)
	}

	// Sort by severity for consistency
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Severity < logs[j].Severity
	})

	return logs, nil
}

// ListServices returns all service names seen.
func (s *Store) ListServices(ctx context.Context) ([]string, error) {
	s.servicesmu.RLock()
	defer s.servicesmu.RUnlock()

	services := make([]string, 0, len(s.services))
	for service := range s.services {
		services = append(services, service)
	}
	sort.Strings(services)

	return services, nil
}

// GetServiceOverview returns a summary of all telemetry for a service.
func (s *Store) GetServiceOverview(ctx context.Context, serviceName string) (*models.ServiceOverview, error) {
	if serviceName == "" {
		return nil, errors.New("service name cannot be empty")
	}

	metrics, err := s.ListMetrics(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}

	spans, err := s.ListSpans(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("listing spans: %w", err)
	}

	logs, err := s.ListLogs(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}

	return &models.ServiceOverview{
		ServiceName: serviceName,
		MetricCount: len(metrics),
		SpanCount:   len(spans),
		LogCount:    len(logs),
		Metrics:     metrics,
		Spans:       spans,
		Logs:        logs,
	}, nil
}

// GetLogPatterns groups stored log body templates by template text across
// all severities and services, for the pattern explorer endpoint.
func (s *Store) GetLogPatterns(ctx context.Context, minCount int64, minServices int) (*models.PatternExplorerResponse, error) {
	s.logsmu.RLock()
	defer s.logsmu.RUnlock()

	groups := make(map[string]*models.PatternGroup)
	serviceSets := make(map[string]map[string]bool)

	for _, log := range s.logs {
		for _, bt := range log.BodyTemplates {
			g, ok := groups[bt.Template]
			if !ok {
				g = &models.PatternGroup{
					Template:          bt.Template,
					ExampleBody:       bt.Example,
					SeverityBreakdown: make(map[string]int64),
				}
				groups[bt.Template] = g
				serviceSets[bt.Template] = make(map[string]bool)
			}
			g.TotalCount += bt.Count
			g.SeverityBreakdown[log.Severity] += bt.Count

			for service := range log.Services {
				serviceSets[bt.Template][service] = true
			}
		}
	}

	resp := &models.PatternExplorerResponse{}
	for template, g := range groups {
		if g.TotalCount < minCount {
			continue
		}
		services := serviceSets[template]
		if len(services) < minServices {
			continue
		}

		names := make([]string, 0, len(services))
		for name := range services {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			g.Services = append(g.Services, models.ServicePatternInfo{ServiceName: name})
		}

		resp.Patterns = append(resp.Patterns, *g)
	}

	sort.Slice(resp.Patterns, func(i, j int) bool {
		return resp.Patterns[i].TotalCount > resp.Patterns[j].TotalCount
	})
	resp.Total = len(resp.Patterns)

	return resp, nil
}

// GetHighCardinalityKeys scans attribute/resource/label keys across all
// signal types for HLL-estimated cardinality at or above threshold.
func (s *Store) GetHighCardinalityKeys(ctx context.Context, threshold int, limit int) (*models.CrossSignalCardinalityResponse, error) {
	resp := &models.CrossSignalCardinalityResponse{Threshold: threshold}

	s.metricsmu.RLock()
	for name, m := range s.metrics {
		collectHighCardinalityKeys(&resp.HighCardinalityKeys, "metric", name, "label", m.LabelKeys, threshold)
		collectHighCardinalityKeys(&resp.HighCardinalityKeys, "metric", name, "resource", m.ResourceKeys, threshold)
	}
	s.metricsmu.RUnlock()

	s.spansmu.RLock()
	for name, sp := range s.spans {
		collectHighCardinalityKeys(&resp.HighCardinalityKeys, "span", name, "attribute", sp.AttributeKeys, threshold)
		collectHighCardinalityKeys(&resp.HighCardinalityKeys, "span", name, "resource", sp.ResourceKeys, threshold)
	}
	s.spansmu.RUnlock()

	s.logsmu.RLock()
	for severity, log := range s.logs {
		collectHighCardinalityKeys(&resp.HighCardinalityKeys, "log", severity, "attribute", log.AttributeKeys, threshold)
		collectHighCardinalityKeys(&resp.HighCardinalityKeys, "log", severity, "resource", log.ResourceKeys, threshold)
	}
	s.logsmu.RUnlock()

	sort.Slice(resp.HighCardinalityKeys, func(i, j int) bool {
		return resp.HighCardinalityKeys[i].EstimatedCardinality > resp.HighCardinalityKeys[j].EstimatedCardinality
	})
	if limit > 0 && len(resp.HighCardinalityKeys) > limit {
		resp.HighCardinalityKeys = resp.HighCardinalityKeys[:limit]
	}
	resp.Total = len(resp.HighCardinalityKeys)

	return resp, nil
}

func collectHighCardinalityKeys(out *[]models.SignalKey, signalType, signalName, scope string, keys map[string]*models.KeyMetadata, threshold int) {
	for keyName, meta := range keys {
		if int(meta.EstimatedCardinality) < threshold {
			continue
		}
		*out = append(*out, models.SignalKey{
			SignalType:           signalType,
			SignalName:           signalName,
			KeyScope:             scope,
			KeyName:              keyName,
			EstimatedCardinality: int(meta.EstimatedCardinality),
			KeyCount:             meta.Count,
			ValueSamples:         meta.ValueSamples,
		})
	}
}

// GetMetadataComplexity scores signals by total key count and max cardinality
// across their attribute (or label) and resource key scopes. Span event and
// link keys are not counted.
func (s *Store) GetMetadataComplexity(ctx context.Context, threshold int, limit int) (*models.MetadataComplexityResponse, error) {
	if limit <= 0 {
		limit = 100
	}

	var signals []models.SignalComplexity

	s.metricsmu.RLock()
	for name, m := range s.metrics {
		sig := complexitySignal("metric", name, m.LabelKeys, m.ResourceKeys, nil, nil)
		if sig.TotalKeys >= threshold {
			signals = append(signals, sig)
		}
	}
	s.metricsmu.RUnlock()

	s.spansmu.RLock()
	for name, sp := range s.spans {
		sig := complexitySignal("span", name, sp.AttributeKeys, sp.ResourceKeys, nil, nil)
		if sig.TotalKeys >= threshold {
			signals = append(signals, sig)
		}
	}
	s.spansmu.RUnlock()

	s.logsmu.RLock()
	for severity, log := range s.logs {
		sig := complexitySignal("log", severity, log.AttributeKeys, log.ResourceKeys, nil, nil)
		if sig.TotalKeys >= threshold {
			signals = append(signals, sig)
		}
	}
	s.logsmu.RUnlock()

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].TotalKeys != signals[j].TotalKeys {
			return signals[i].TotalKeys > signals[j].TotalKeys
		}
		return signals[i].MaxCardinality > signals[j].MaxCardinality
	})
	if len(signals) > limit {
		signals = signals[:limit]
	}

	return &models.MetadataComplexityResponse{
		Signals:   signals,
		Total:     len(signals),
		Threshold: threshold,
	}, nil
}

func complexitySignal(signalType, signalName string, attrKeys, resourceKeys, eventKeys, linkKeys map[string]*models.KeyMetadata) models.SignalComplexity {
	sig := models.SignalComplexity{
		SignalType:        signalType,
		SignalName:        signalName,
		AttributeKeyCount: len(attrKeys),
		ResourceKeyCount:  len(resourceKeys),
		EventKeyCount:     len(eventKeys),
		LinkKeyCount:      len(linkKeys),
	}
	sig.TotalKeys = sig.AttributeKeyCount + sig.ResourceKeyCount + sig.EventKeyCount + sig.LinkKeyCount

	for _, group := range []map[string]*models.KeyMetadata{attrKeys, resourceKeys, eventKeys, linkKeys} {
		for _, meta := range group {
			card := int(meta.EstimatedCardinality)
			if card > sig.MaxCardinality {
				sig.MaxCardinality = card
			}
			if card > 100 {
				sig.HighCardinalityCount++
			}
		}
	}
	sig.ComplexityScore = sig.TotalKeys * sig.MaxCardinality

	return sig
}

// StoreAttributeValue records an observation of value for key, updating its
// HLL cardinality sketch, sample set, and scope/signal-type tracking.
func (s *Store) StoreAttributeValue(ctx context.Context, key, value, signalType, scope string) error {
	s.attributesmu.Lock()
	defer s.attributesmu.Unlock()

	attr, ok := s.attributes[key]
	if !ok {
		attr = models.NewAttributeMetadata(key)
		s.attributes[key] = attr
	}
	attr.AddValue(value, signalType, scope)

	return nil
}

// GetAttribute retrieves metadata for a single attribute key.
func (s *Store) GetAttribute(ctx context.Context, key string) (*models.AttributeMetadata, error) {
	s.attributesmu.RLock()
	defer s.attributesmu.RUnlock()

	attr, ok := s.attributes[key]
	if !ok {
		return nil, fmt.Errorf("attribute %s: %w", key, ErrNotFound)
	}
	return attr, nil
}

// ListAttributes lists attributes, applying filter's signal type, scope,
// and cardinality bounds, then sorting and paginating per filter.SortBy.
func (s *Store) ListAttributes(ctx context.Context, filter *models.AttributeFilter) ([]*models.AttributeMetadata, error) {
	s.attributesmu.RLock()
	attrs := make([]*models.AttributeMetadata, 0, len(s.attributes))
	for _, attr := range s.attributes {
		attrs = append(attrs, attr)
	}
	s.attributesmu.RUnlock()

	if filter != nil {
		filtered := attrs[:0]
		for _, attr := range attrs {
			if filter.SignalType != "" && !containsString(attr.SignalTypes, filter.SignalType) {
				continue
			}
			if filter.Scope != "" && attr.Scope != filter.Scope {
				continue
			}
			if filter.MinCardinality > 0 && attr.EstimatedCardinality < filter.MinCardinality {
				continue
			}
			if filter.MaxCardinality > 0 && attr.EstimatedCardinality > filter.MaxCardinality {
				continue
			}
			filtered = append(filtered, attr)
		}
		attrs = filtered

		switch filter.SortBy {
		case "count":
			sort.Slice(attrs, func(i, j int) bool { return attrs[i].Count > attrs[j].Count })
		case "key":
			sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
		case "first_seen":
			sort.Slice(attrs, func(i, j int) bool { return attrs[i].FirstSeen.Before(attrs[j].FirstSeen) })
		case "last_seen":
			sort.Slice(attrs, func(i, j int) bool { return attrs[i].LastSeen.Before(attrs[j].LastSeen) })
		default:
			sort.Slice(attrs, func(i, j int) bool { return attrs[i].EstimatedCardinality > attrs[j].EstimatedCardinality })
		}
		if filter.SortOrder == "asc" {
			reverseAttributes(attrs)
		}

		if filter.Offset > 0 {
			if filter.Offset >= len(attrs) {
				return []*models.AttributeMetadata{}, nil
			}
			attrs = attrs[filter.Offset:]
		}
		if filter.Limit > 0 && len(attrs) > filter.Limit {
			attrs = attrs[:filter.Limit]
		}
	}

	return attrs, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func reverseAttributes(attrs []*models.AttributeMetadata) {
	for i, j := 0, len(attrs)-1; i < j; i, j = i+1, j-1 {
		attrs[i], attrs[j] = attrs[j], attrs[i]
	}
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	s.metricsmu.Lock()
	s.spansmu.Lock()
	s.logsmu.Lock()
	s.servicesmu.Lock()
	s.attributesmu.Lock()
	defer s.metricsmu.Unlock()
	defer s.spansmu.Unlock()
	defer s.logsmu.Unlock()
	defer s.servicesmu.Unlock()
	defer s.attributesmu.Unlock()

	s.metrics = make(map[string]*models.MetricMetadata)
	s.spans = make(map[string]*models.SpanMetadata)
	s.logs = make(map[string]*models.LogMetadata)
	s.services = make(map[string]struct{})
	s.attributes = make(map[string]*models.AttributeMetadata)

	return nil
}

// trackServices adds services to the global service set.
// Must be called with appropriate lock held.
func (s *Store) trackServices(services map[string]int64) {
	s.servicesmu.Lock()
	defer s.servicesmu.Unlock()

	for service := range services {
		s.services[service] = struct{}{}
	}
}
