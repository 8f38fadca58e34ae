package application

import (
	"sort"
	"strings"
	"time"

	balance "gridbalance/internal/balance/domain"
	"gridbalance/internal/reeadapter"
)

// sectionKind classifies a payload section. Storage is not a first-class
// canonical category: its entries are reclassified by sign during decode.
type sectionKind int

const (
	kindUnknown sectionKind = iota
	kindGeneration
	kindDemand
	kindInterchange
	kindStorage
)

// MetadataSource tags normalized records with the upstream origin.
const MetadataSource = "ree-apidatos"

var sectionKinds = map[string]sectionKind{
	"renovable":                    kindGeneration,
	"no-renovable":                 kindGeneration,
	"generacion":                   kindGeneration,
	"generation":                   kindGeneration,
	"demanda":                      kindDemand,
	"demanda en b.c.":              kindDemand,
	"demand":                       kindDemand,
	"intercambios":                 kindInterchange,
	"intercambios internacionales": kindInterchange,
	"saldo i. internacionales":     kindInterchange,
	"interchange":                  kindInterchange,
	"almacenamiento":               kindStorage,
	"storage":                      kindStorage,
}

// categorySlugs canonicalizes known REE entry titles. Unknown titles are
// slugified as-is so downstream grouping stays stable.
var categorySlugs = map[string]string{
	"hidráulica":               "hydro",
	"hidraulica":               "hydro",
	"eólica":                   "wind",
	"eolica":                   "wind",
	"solar fotovoltaica":       "solar-pv",
	"solar térmica":            "solar-thermal",
	"solar termica":            "solar-thermal",
	"otras renovables":         "other-renewables",
	"hidroeólica":              "hydro-wind",
	"hidroeolica":              "hydro-wind",
	"nuclear":                  "nuclear",
	"ciclo combinado":          "combined-cycle",
	"carbón":                   "coal",
	"carbon":                   "coal",
	"cogeneración":             "cogeneration",
	"cogeneracion":             "cogeneration",
	"motores diésel":           "diesel",
	"turbina de gas":           "gas-turbine",
	"turbina de vapor":         "steam-turbine",
	"residuos no renovables":   "non-renewable-waste",
	"residuos renovables":      "renewable-waste",
	"turbinación bombeo":       "pumped-storage",
	"entrega batería":          "battery-discharge",
	"carga batería":            "battery-charge",
	"consumos en bombeo":       "pumping-consumption",
	"demanda en b.c.":          "demand",
	"demanda":                  "demand",
	"saldo i. internacionales": "international-balance",
}

var observationLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeBalance converts one apidatos payload into canonical records, one
// per distinct observation datetime. When the payload carries no observation
// datetimes at all, a single record is built from the primary object's
// timestamp. The requested granularity is stamped on every record.
func NormalizeBalance(payload *reeadapter.BalanceResponse, g balance.Granularity) ([]*balance.BalanceRecord, error) {
	if payload == nil || payload.Data == nil {
		return nil, balance.NewError(balance.KindNormalization, "payload has no primary data object")
	}

	metadata := map[string]string{
		"title":  payload.Data.Attributes.Title,
		"source": MetadataSource,
	}
	if payload.Data.Attributes.Description != "" {
		metadata["description"] = payload.Data.Attributes.Description
	}
	if payload.Data.Attributes.LastUpdate != "" {
		metadata["last_update"] = payload.Data.Attributes.LastUpdate
	}

	builder := newRecordBuilder(g, metadata)
	for _, section := range payload.Included {
		kind := classifySection(section)
		if kind == kindUnknown {
			continue
		}
		for _, entry := range section.Attributes.Content {
			category := canonicalCategory(entry.Attributes.Title, entry.Type)
			for _, point := range entry.Attributes.Values {
				ts, ok := parseObservation(point.Datetime)
				if !ok {
					continue
				}
				item := balance.BalanceItem{
					Category:   category,
					ValueMW:    balance.Sanitize(point.Value),
					Percentage: balance.Sanitize(point.Percentage),
					Color:      entry.Attributes.Color,
					Unit:       "MW",
				}
				builder.add(ts, kind, item)
			}
		}
	}

	records := builder.records()
	if len(records) == 0 {
		ts, ok := primaryTimestamp(payload.Data.Attributes)
		if !ok {
			return nil, balance.NewError(balance.KindNormalization, "no timestamp source in payload")
		}
		builder.add(ts, kindUnknown, balance.BalanceItem{})
		records = builder.records()
	}

	for _, record := range records {
		if len(record.Generation) == 0 {
			record.Generation = []balance.BalanceItem{balance.PlaceholderItem()}
		}
		if len(record.Demand) == 0 {
			record.Demand = []balance.BalanceItem{balance.PlaceholderItem()}
		}
	}
	return records, nil
}

type recordBuilder struct {
	granularity balance.Granularity
	metadata    map[string]string
	byTime      map[time.Time]*balance.BalanceRecord
	order       []time.Time
}

func newRecordBuilder(g balance.Granularity, metadata map[string]string) *recordBuilder {
	return &recordBuilder{
		granularity: g,
		metadata:    metadata,
		byTime:      make(map[time.Time]*balance.BalanceRecord),
	}
}

func (b *recordBuilder) add(ts time.Time, kind sectionKind, item balance.BalanceItem) {
	ts = ts.UTC()
	record, ok := b.byTime[ts]
	if !ok {
		record = &balance.BalanceRecord{
			Timestamp:   ts,
			Granularity: b.granularity,
			Metadata:    copyMetadata(b.metadata),
		}
		b.byTime[ts] = record
		b.order = append(b.order, ts)
	}

	switch kind {
	case kindGeneration:
		record.Generation = append(record.Generation, item)
	case kindDemand:
		record.Demand = append(record.Demand, item)
	case kindInterchange:
		record.Interchange = append(record.Interchange, item)
	case kindStorage:
		// Discharging storage acts as generation, charging as demand.
		if item.ValueMW < 0 {
			item.ValueMW = -item.ValueMW
			record.Demand = append(record.Demand, item)
		} else {
			record.Generation = append(record.Generation, item)
		}
	}
}

func (b *recordBuilder) records() []*balance.BalanceRecord {
	sort.Slice(b.order, func(i, j int) bool { return b.order[i].Before(b.order[j]) })
	result := make([]*balance.BalanceRecord, 0, len(b.order))
	for _, ts := range b.order {
		result = append(result, b.byTime[ts])
	}
	return result
}

func classifySection(section reeadapter.Section) sectionKind {
	if kind, ok := sectionKinds[normalizeLabel(section.Type)]; ok {
		return kind
	}
	if kind, ok := sectionKinds[normalizeLabel(section.Attributes.Title)]; ok {
		return kind
	}
	return kindUnknown
}

func canonicalCategory(title, entryType string) string {
	label := normalizeLabel(title)
	if label == "" {
		label = normalizeLabel(entryType)
	}
	if slug, ok := categorySlugs[label]; ok {
		return slug
	}
	return strings.ReplaceAll(label, " ", "-")
}

func normalizeLabel(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func parseObservation(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range observationLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func primaryTimestamp(attrs reeadapter.DataAttributes) (time.Time, bool) {
	if ts, ok := parseObservation(attrs.Datetime); ok {
		return ts.UTC(), true
	}
	if ts, ok := parseObservation(attrs.LastUpdate); ok {
		return ts.UTC(), true
	}
	return time.Time{}, false
}

func copyMetadata(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
