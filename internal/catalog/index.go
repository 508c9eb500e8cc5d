package catalog

import "strings"

// Index maps the text found on carrier bills back to catalog companies.
type Index struct {
	catalog    *Catalog
	keywords   []keywordEntry
	pdfMarkers []keywordEntry
}

type keywordEntry struct {
	keyword string
	company string
}

func BuildIndex(c *Catalog) *Index {
	idx := &Index{catalog: c}
	for _, co := range c.companies {
		for _, kw := range co.BillKeywords {
			idx.keywords = append(idx.keywords, keywordEntry{keyword: kw, company: co.Name})
		}
		for _, m := range co.PDFMarkers {
			idx.pdfMarkers = append(idx.pdfMarkers, keywordEntry{keyword: m, company: co.Name})
		}
	}
	return idx
}

// CompanyForBillName resolves the customer name printed on an HTML bill.
func (i *Index) CompanyForBillName(raw string) (string, bool) {
	for _, e := range i.keywords {
		if strings.Contains(raw, e.keyword) {
			return e.company, true
		}
	}
	return "", false
}

// CompanyForPDF resolves a PDF bill by the marker in its file name.
func (i *Index) CompanyForPDF(filename string) (string, bool) {
	for _, e := range i.pdfMarkers {
		if strings.Contains(filename, e.keyword) {
			return e.company, true
		}
	}
	return "", false
}

func (i *Index) Catalog() *Catalog {
	return i.catalog
}
