package rpki

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validateOne(rt *ROATable, cidr string, as uint32) ValidationState {
	s, _ := rt.Lookup(context.Background(), cidr, as)
	return s
}

func addROA(rt *ROATable, prefix string, maxLen uint8, as uint32) {
	rt.Add(NewROA(netip.MustParsePrefix(prefix), maxLen, as, ""))
}

func TestValidate0(t *testing.T) {
	assert := assert.New(t)

	table := NewROATable()
	addROA(table, "192.168.0.0/24", 32, 100)
	addROA(table, "192.168.0.0/24", 24, 200)

	assert.Equal(VALIDATION_STATE_VALID, validateOne(table, "192.168.0.0/24", 100))
	assert.Equal(VALIDATION_STATE_VALID, validateOne(table, "192.168.0.0/24", 200))
	assert.Equal(VALIDATION_STATE_INVALID, validateOne(table, "192.168.0.0/24", 300))
	assert.Equal(VALIDATION_STATE_VALID, validateOne(table, "192.168.0.0/25", 100))
	assert.Equal(VALIDATION_STATE_INVALID, validateOne(table, "192.168.0.0/25", 200))
	assert.Equal(VALIDATION_STATE_INVALID, validateOne(table, "192.168.0.0/25", 300))
}

func TestValidate1(t *testing.T) {
	assert := assert.New(t)

	table := NewROATable()
	addROA(table, "10.0.0.0/16", 16, 65000)

	assert.Equal(VALIDATION_STATE_VALID, validateOne(table, "10.0.0.0/16", 65000))
	assert.Equal(VALIDATION_STATE_INVALID, validateOne(table, "10.0.0.0/16", 65001))
}

func TestValidateEmptyTable(t *testing.T) {
	table := NewROATable()
	assert.Equal(t, VALIDATION_STATE_NOT_FOUND, validateOne(table, "10.0.0.0/16", 65000))
	assert.Equal(t, VALIDATION_STATE_NOT_FOUND, validateOne(table, "2001:db8::/32", 65000))
}

func TestValidateLessSpecific(t *testing.T) {
	table := NewROATable()
	addROA(table, "10.0.0.0/16", 16, 65000)

	// a /8 is not covered by the /16 ROA
	assert.Equal(t, VALIDATION_STATE_NOT_FOUND, validateOne(table, "10.0.0.0/8", 65000))
}

func TestValidateASZero(t *testing.T) {
	table := NewROATable()
	addROA(table, "10.0.0.0/16", 16, 0)

	assert.Equal(t, VALIDATION_STATE_INVALID, validateOne(table, "10.0.0.0/16", 0))
}

func TestValidateIPv6(t *testing.T) {
	table := NewROATable()
	addROA(table, "2001:db8::/32", 48, 64500)

	assert.Equal(t, VALIDATION_STATE_VALID, validateOne(table, "2001:db8:1::/48", 64500))
	assert.Equal(t, VALIDATION_STATE_INVALID, validateOne(table, "2001:db8:1::/56", 64500))
	assert.Equal(t, VALIDATION_STATE_NOT_FOUND, validateOne(table, "2001:db9::/32", 64500))
	// IPv4 lookups never see IPv6 ROAs
	assert.Equal(t, VALIDATION_STATE_NOT_FOUND, validateOne(table, "32.1.13.0/24", 64500))
}

func TestLookupBadPrefix(t *testing.T) {
	table := NewROATable()
	s, err := table.Lookup(context.Background(), "not-a-prefix", 1)
	assert.Error(t, err)
	assert.Equal(t, VALIDATION_STATE_UNVERIFIED, s)
}

func TestAddDelete(t *testing.T) {
	assert := assert.New(t)

	table := NewROATable()
	roa := NewROA(netip.MustParsePrefix("192.0.2.0/24"), 24, 64500, "a")
	table.Add(roa)
	table.Add(NewROA(netip.MustParsePrefix("192.0.2.0/24"), 24, 64500, "a"))
	table.Add(NewROA(netip.MustParsePrefix("192.0.2.0/24"), 24, 64501, "a"))
	assert.Equal(2, table.Len())

	assert.True(table.Delete(roa))
	assert.False(table.Delete(roa))
	assert.Equal(1, table.Len())
	assert.Equal(VALIDATION_STATE_INVALID, validateOne(table, "192.0.2.0/24", 64500))
}

func TestList(t *testing.T) {
	table := NewROATable()
	addROA(table, "2001:db8::/32", 32, 1)
	addROA(table, "10.0.0.0/8", 24, 3)
	addROA(table, "10.0.0.0/8", 8, 2)

	l := table.List()
	require.Len(t, l, 3)
	assert.Equal(t, "10.0.0.0/8-8 AS2", l[0].String())
	assert.Equal(t, "10.0.0.0/8-24 AS3", l[1].String())
	assert.Equal(t, "2001:db8::/32-32 AS1", l[2].String())
}

const roaExport = `{
  "metadata": {"generated": 1700000000},
  "roas": [
    {"asn": "AS13335", "prefix": "1.0.0.0/24", "maxLength": 24, "ta": "apnic"},
    {"asn": 64500, "prefix": "2001:db8::/32", "maxLength": 48},
    {"asn": "as64501", "prefix": "198.51.100.0/24"}
  ]
}`

func TestReadROAs(t *testing.T) {
	table := NewROATable()
	n, err := table.ReadROAs(strings.NewReader(roaExport), "test")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, table.Len())

	assert.Equal(t, VALIDATION_STATE_VALID, validateOne(table, "1.0.0.0/24", 13335))
	assert.Equal(t, VALIDATION_STATE_VALID, validateOne(table, "2001:db8:ff::/48", 64500))
	// missing maxLength defaults to the prefix length
	assert.Equal(t, VALIDATION_STATE_INVALID, validateOne(table, "198.51.100.0/25", 64501))
}

func TestReadROAsErrors(t *testing.T) {
	for _, doc := range []string{
		`{"roas": [{"asn": "AS1", "prefix": "1.0.0.0/33"}]}`,
		`{"roas": [{"asn": "ASX", "prefix": "1.0.0.0/24"}]}`,
		`{"roas": [{"asn": 1, "prefix": "1.0.0.0/24", "maxLength": 16}]}`,
		`{"roas": [{"asn": 1, "prefix": "1.0.0.0/24", "maxLength": 33}]}`,
		`{"roas": `,
	} {
		_, err := NewROATable().ReadROAs(strings.NewReader(doc), "")
		assert.Error(t, err, doc)
	}
}

func TestLoadROAFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roas.json")
	require.NoError(t, os.WriteFile(path, []byte(roaExport), 0o600))

	table, err := LoadROAFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, path, table.List()[0].Src)

	_, err = LoadROAFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
