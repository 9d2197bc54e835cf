package barcode

import (
	"time"

	"healthcert/internal/domain"
)

// SchemaVersion is the payload schema version carried in every token.
const SchemaVersion = "1.3.0"

// TokenPrefix is the protocol marker prepended to every encoded token.
const TokenPrefix = "HC1"

// dateLayout is the calendar-date format used throughout the payloads.
const dateLayout = "2006-01-02"

// Payload is the top-level compact-keyed token body. The numeric keys are
// bit-exact wire contract: "1" barcode-issuer country, "4" expiry, "6" issue
// time (both Unix seconds), "-260" the health certificate content.
type Payload struct {
	Issuer   string  `json:"1" cbor:"1,keyasint"`
	Expiry   int64   `json:"4" cbor:"4,keyasint"`
	IssuedAt int64   `json:"6" cbor:"6,keyasint"`
	Content  Content `json:"-260" cbor:"-260,keyasint"`
}

// Content nests the certificate document under claim key 1.
type Content struct {
	Document Document `json:"1" cbor:"1,keyasint"`
}

// Document is the subject-level certificate record.
type Document struct {
	DomesticCertificates []DomesticEntry    `json:"d,omitempty" cbor:"d,omitempty"`
	Vaccinations         []VaccinationEntry `json:"v,omitempty" cbor:"v,omitempty"`
	Recoveries           []RecoveryEntry    `json:"r,omitempty" cbor:"r,omitempty"`
	DateOfBirth          string             `json:"dob" cbor:"dob"`
	Name                 Name               `json:"nam" cbor:"nam"`
	Version              string             `json:"ver" cbor:"ver"`
}

// Name carries both the raw subject name and its standardized transliteration.
type Name struct {
	FamilyName            string `json:"fn" cbor:"fn"`
	GivenName             string `json:"gn" cbor:"gn"`
	StandardizedFamily    string `json:"fnt" cbor:"fnt"`
	StandardizedGivenName string `json:"gnt" cbor:"gnt"`
}

// DomesticEntry is the single certificate sub-record of a domestic token.
type DomesticEntry struct {
	CertificateID string   `json:"ci" cbor:"ci"`
	Country       string   `json:"co" cbor:"co"`
	Issuer        string   `json:"is" cbor:"is"`
	ValidFrom     string   `json:"df" cbor:"df"`
	ValidUntil    string   `json:"du" cbor:"du"`
	PolicyMask    int      `json:"pm" cbor:"pm"`
	Policy        []string `json:"po" cbor:"po"`
}

// VaccinationEntry is one dose record of an international vaccination token.
type VaccinationEntry struct {
	Disease        string `json:"tg" cbor:"tg"`
	VaccineType    string `json:"vp" cbor:"vp"`
	Product        string `json:"mp" cbor:"mp"`
	Manufacturer   string `json:"ma" cbor:"ma"`
	DoseNumber     int    `json:"dn" cbor:"dn"`
	SeriesDoses    int    `json:"sd" cbor:"sd"`
	Date           string `json:"dt" cbor:"dt"`
	Country        string `json:"co" cbor:"co"`
	Issuer         string `json:"is" cbor:"is"`
	CertificateID  string `json:"ci" cbor:"ci"`
}

// RecoveryEntry is the single record of an international recovery token.
type RecoveryEntry struct {
	Disease       string `json:"tg" cbor:"tg"`
	FirstResult   string `json:"fr" cbor:"fr"`
	Country       string `json:"co" cbor:"co"`
	Issuer        string `json:"is" cbor:"is"`
	ValidFrom     string `json:"df" cbor:"df"`
	ValidUntil    string `json:"du" cbor:"du"`
	CertificateID string `json:"ci" cbor:"ci"`
}

func newName(subject domain.Subject) Name {
	return Name{
		FamilyName:            subject.FamilyName,
		GivenName:             subject.GivenName,
		StandardizedFamily:    standardizeName(subject.FamilyName),
		StandardizedGivenName: standardizeName(subject.GivenName),
	}
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
