package emissions

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// sum keeps every contribution to a group so the total can be computed in a
// canonical order. Float addition is not associative; sorting first makes
// the result independent of input order and of how partials were merged.
type sum struct {
	values []float64
}

func (s *sum) add(v float64) {
	s.values = append(s.values, v)
}

func (s *sum) merge(o *sum) {
	s.values = append(s.values, o.values...)
}

func (s *sum) total() float64 {
	if len(s.values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.values))
	copy(sorted, s.values)
	sort.Float64s(sorted)
	return floats.Sum(sorted)
}

type productKey struct {
	month     string
	productID string
}

type productGroup struct {
	rows      int
	units     int64
	energy    sum
	transport sum
	total     sum
}

type billKey struct {
	month    string
	region   string
	billType string
}

type monthGroup struct {
	units int64
	co2   sum
}

// Partial is a mergeable aggregation state. Partials built from disjoint
// record sets can be merged in any order and yield the same metrics as a
// single partial built from their union.
type Partial struct {
	products map[productKey]*productGroup
	bills    map[billKey]*sum
	product  map[string]*monthGroup
	utility  map[string]*sum
}

func NewPartial() *Partial {
	return &Partial{
		products: make(map[productKey]*productGroup),
		bills:    make(map[billKey]*sum),
		product:  make(map[string]*monthGroup),
		utility:  make(map[string]*sum),
	}
}

func (p *Partial) AddOperation(e OperationEmission) {
	key := productKey{month: e.Month, productID: e.ProductID}
	g, ok := p.products[key]
	if !ok {
		g = &productGroup{}
		p.products[key] = g
	}
	g.rows++
	g.units += e.UnitsSold
	g.energy.add(e.EnergyCO2)
	g.transport.add(e.TransportCO2)
	g.total.add(e.TotalCO2)

	m, ok := p.product[e.Month]
	if !ok {
		m = &monthGroup{}
		p.product[e.Month] = m
	}
	m.units += e.UnitsSold
	m.co2.add(e.TotalCO2)
}

func (p *Partial) AddBill(e BillEmission) {
	key := billKey{month: e.Month, region: e.Region, billType: e.BillType}
	s, ok := p.bills[key]
	if !ok {
		s = &sum{}
		p.bills[key] = s
	}
	s.add(e.EstimatedCO2)

	u, ok := p.utility[e.Month]
	if !ok {
		u = &sum{}
		p.utility[e.Month] = u
	}
	u.add(e.EstimatedCO2)
}

func (p *Partial) Merge(o *Partial) {
	for k, og := range o.products {
		g, ok := p.products[k]
		if !ok {
			g = &productGroup{}
			p.products[k] = g
		}
		g.rows += og.rows
		g.units += og.units
		g.energy.merge(&og.energy)
		g.transport.merge(&og.transport)
		g.total.merge(&og.total)
	}
	for k, ob := range o.bills {
		s, ok := p.bills[k]
		if !ok {
			s = &sum{}
			p.bills[k] = s
		}
		s.merge(ob)
	}
	for k, om := range o.product {
		m, ok := p.product[k]
		if !ok {
			m = &monthGroup{}
			p.product[k] = m
		}
		m.units += om.units
		m.co2.merge(&om.co2)
	}
	for k, ou := range o.utility {
		u, ok := p.utility[k]
		if !ok {
			u = &sum{}
			p.utility[k] = u
		}
		u.merge(ou)
	}
}

// CatalogIndex resolves normalized product ids to catalog entries.
type CatalogIndex map[string]CatalogEntry

// NewCatalogIndex normalizes entry keys. When two entries collide after
// normalization the one with the lexically smallest raw id wins.
func NewCatalogIndex(entries []CatalogEntry) CatalogIndex {
	sorted := make([]CatalogEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	idx := make(CatalogIndex, len(sorted))
	for _, e := range sorted {
		key := NormalizeKey(e.ProductID)
		if _, exists := idx[key]; exists {
			continue
		}
		idx[key] = e
	}
	return idx
}

// Products inner-joins the product groups with the catalog. Groups whose
// product id is not in the catalog are reported as warnings.
func (p *Partial) Products(catalog CatalogIndex) ([]MonthlyProductMetric, []ReconciliationWarning) {
	metrics := make([]MonthlyProductMetric, 0, len(p.products))
	var warnings []ReconciliationWarning

	for k, g := range p.products {
		entry, ok := catalog[k.productID]
		if !ok {
			warnings = append(warnings, ReconciliationWarning{
				Kind:      UnmatchedProductID,
				Month:     k.month,
				ProductID: k.productID,
				Rows:      g.rows,
			})
			continue
		}
		metrics = append(metrics, MonthlyProductMetric{
			Month:        k.month,
			ProductID:    k.productID,
			ProductName:  entry.ProductName,
			Category:     entry.Category,
			TotalUnits:   g.units,
			EnergyCO2:    g.energy.total(),
			TransportCO2: g.transport.total(),
			TotalCO2:     g.total.total(),
		})
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Month != metrics[j].Month {
			return metrics[i].Month < metrics[j].Month
		}
		return metrics[i].ProductID < metrics[j].ProductID
	})
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Month != warnings[j].Month {
			return warnings[i].Month < warnings[j].Month
		}
		return warnings[i].ProductID < warnings[j].ProductID
	})

	return metrics, warnings
}

func (p *Partial) Bills() []BillEmissionMetric {
	metrics := make([]BillEmissionMetric, 0, len(p.bills))
	for k, s := range p.bills {
		metrics = append(metrics, BillEmissionMetric{
			Month:        k.month,
			Region:       k.region,
			BillType:     k.billType,
			EstimatedCO2: s.total(),
		})
	}
	sort.Slice(metrics, func(i, j int) bool {
		a, b := metrics[i], metrics[j]
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.BillType < b.BillType
	})
	return metrics
}

// Company unions the per-month product and utility totals, tagged by
// source. Product totals include rows that did not match the catalog.
func (p *Partial) Company() []CompanyEmissionMetric {
	metrics := make([]CompanyEmissionMetric, 0, len(p.product)+len(p.utility))
	for month, m := range p.product {
		metrics = append(metrics, CompanyEmissionMetric{Month: month, Source: SourceProduct, CO2: m.co2.total()})
	}
	for month, u := range p.utility {
		metrics = append(metrics, CompanyEmissionMetric{Month: month, Source: SourceUtility, CO2: u.total()})
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Month != metrics[j].Month {
			return metrics[i].Month < metrics[j].Month
		}
		return metrics[i].Source < metrics[j].Source
	})
	return metrics
}

// Footprint pivots the company series into one row per month; a month
// missing on one side counts as zero for it.
func Footprint(company []CompanyEmissionMetric) []FootprintRow {
	byMonth := make(map[string]*FootprintRow)
	var months []string

	for _, c := range company {
		row, ok := byMonth[c.Month]
		if !ok {
			row = &FootprintRow{Month: c.Month}
			byMonth[c.Month] = row
			months = append(months, c.Month)
		}
		switch c.Source {
		case SourceProduct:
			row.ProductCO2 += c.CO2
		case SourceUtility:
			row.UtilityCO2 += c.CO2
		}
	}

	sort.Strings(months)
	rows := make([]FootprintRow, len(months))
	for i, m := range months {
		r := byMonth[m]
		r.TotalCO2 = r.ProductCO2 + r.UtilityCO2
		rows[i] = *r
	}
	return rows
}

// Trends reports the product branch per month with the intensity per unit
// sold.
func (p *Partial) Trends() []TrendRow {
	rows := make([]TrendRow, 0, len(p.product))
	for month, m := range p.product {
		total := m.co2.total()
		perUnit := 0.0
		if m.units > 0 {
			perUnit = total / float64(m.units)
		}
		rows = append(rows, TrendRow{Month: month, TotalCO2: total, TotalUnits: m.units, CO2PerUnit: perUnit})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows
}

func KPI(company []CompanyEmissionMetric) CompanyKPI {
	s := sum{}
	for _, c := range company {
		s.add(c.CO2)
	}
	return CompanyKPI{TotalCompanyCO2: s.total()}
}

func AggregateProducts(rows []OperationEmission, catalog []CatalogEntry) ([]MonthlyProductMetric, []ReconciliationWarning) {
	p := NewPartial()
	for _, r := range rows {
		p.AddOperation(r)
	}
	return p.Products(NewCatalogIndex(catalog))
}

func AggregateBills(rows []BillEmission) []BillEmissionMetric {
	p := NewPartial()
	for _, r := range rows {
		p.AddBill(r)
	}
	return p.Bills()
}

func CompanyEmissions(ops []OperationEmission, bills []BillEmission) []CompanyEmissionMetric {
	p := NewPartial()
	for _, r := range ops {
		p.AddOperation(r)
	}
	for _, r := range bills {
		p.AddBill(r)
	}
	return p.Company()
}
