package layout

import "strings"

// DefaultTemplate is the partitioned layout used for materialized archive
// data. Hive-style key=value segments keep the tree queryable in place.
const DefaultTemplate = "{zone}/exchange={exchange}/type={dataType}/market={market}/symbol={symbol}/date={date}"

// Service renders canonical relative destination paths. It performs no I/O;
// every storage backend shares the same layout.
type Service struct {
	template string
}

// New returns a Service using the default partitioned layout.
func New() *Service {
	return &Service{template: DefaultTemplate}
}

// NewWithTemplate returns a Service with a custom template. Recognized
// placeholders: {zone}, {exchange}, {dataType}, {market}, {symbol}, {date}.
func NewWithTemplate(template string) *Service {
	if template == "" {
		template = DefaultTemplate
	}
	return &Service{template: template}
}

// RelativePath renders the directory for one partition. The caller appends
// the archive filename.
func (s *Service) RelativePath(zone, exchange, dataType, market, symbol, date string) string {
	path := s.template
	path = strings.ReplaceAll(path, "{zone}", zone)
	path = strings.ReplaceAll(path, "{exchange}", exchange)
	path = strings.ReplaceAll(path, "{dataType}", dataType)
	path = strings.ReplaceAll(path, "{market}", market)
	path = strings.ReplaceAll(path, "{symbol}", symbol)
	path = strings.ReplaceAll(path, "{date}", date)
	return path
}
