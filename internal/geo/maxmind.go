// Package geo resolves client IPs to countries for event enrichment.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
	"go.uber.org/zap"
)

// Resolver looks up the country ISO code for an IP address using a
// MaxMind database file.
type Resolver struct {
	db     *maxminddb.Reader
	logger *zap.Logger
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// NewResolver opens the database at path.
func NewResolver(path string, logger *zap.Logger) (*Resolver, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geo database: %w", err)
	}

	logger.Info("geo database loaded", zap.String("path", path))
	return &Resolver{db: db, logger: logger}, nil
}

// Country returns the ISO country code for ip, or "" when the address
// is unparseable or not in the database.
func (r *Resolver) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	var record countryRecord
	if err := r.db.Lookup(parsed, &record); err != nil {
		r.logger.Debug("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return ""
	}
	return record.Country.ISOCode
}

func (r *Resolver) Close() error {
	return r.db.Close()
}
