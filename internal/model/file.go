package model

import (
	"time"

	"github.com/google/uuid"
)

// FileID identifies a File aggregate. Stable for the file's lifetime.
type FileID = uuid.UUID

// ParseFileID parses a canonical UUID string into a FileID, wrapping
// the error with Validation so callers can errors.Is/As against the
// rest of the error taxonomy.
func ParseFileID(s string) (FileID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, Validation("ParseFileID", err)
	}
	return id, nil
}

// File is the authoritative aggregate: name, extension, MIME, author,
// size, content hash, timestamps, validity window, and filesystem
// metadata. content_hash is globally unique; modified_utc >=
// created_utc; when both set, valid_until >= issued_at.
type File struct {
	ID          FileID
	Name        string
	Extension   string
	MIME        string
	Author      string
	SizeBytes   int64
	ContentHash string // hex(sha256), unique across the corpus
	CreatedUTC  time.Time
	ModifiedUTC time.Time
	IsReadOnly  bool
	Version     int

	Validity *ValidityWindow
	FS       FileSystemMeta

	ExtendedMetadata []ExtendedMetadataEntry

	SearchIndexState SearchIndexState
}

// Validate checks the invariants spec.md §3 places on the File aggregate.
func (f *File) Validate() error {
	if f.ID == uuid.Nil {
		return Validation("File.Validate", errInvalid("file id must not be nil"))
	}
	if f.ContentHash == "" {
		return Validation("File.Validate", errInvalid("content hash must not be empty"))
	}
	if f.ModifiedUTC.Before(f.CreatedUTC) {
		return Validation("File.Validate", errInvalid("modified_utc must be >= created_utc"))
	}
	if f.Validity != nil {
		if f.Validity.IssuedAt != nil && f.Validity.ValidUntil != nil &&
			f.Validity.ValidUntil.Before(*f.Validity.IssuedAt) {
			return Validation("File.Validate", errInvalid("valid_until must be >= issued_at"))
		}
	}
	return nil
}

// ValidityWindow carries the optional issued/expiry timestamps and
// physical/electronic copy flags.
type ValidityWindow struct {
	IssuedAt      *time.Time
	ValidUntil    *time.Time
	HasPhysical   bool
	HasElectronic bool
}

// FileSystemMeta mirrors filesystem-level attributes captured at
// ingestion time (attributes bitmap, owner SID, hard-link count, ADS
// count). Populated by the (out-of-scope) ingestor; carried here only
// as data.
type FileSystemMeta struct {
	Attributes   uint32
	CreatedUTC   time.Time
	ModifiedUTC  time.Time
	AccessedUTC  time.Time
	OwnerSID     string
	HardLinks    int
	ADSCount     int
}

// MetadataKind tags the type carried by an ExtendedMetadataEntry.
type MetadataKind int

const (
	MetaNull MetadataKind = iota
	MetaString
	MetaStringArray
	MetaU32
	MetaI32
	MetaF64
	MetaBool
	MetaUUID
	MetaFileTime
	MetaBinary
)

// MetadataKey identifies a property within a format, e.g. an EXIF or
// Office Open XML property id.
type MetadataKey struct {
	FormatID   uuid.UUID
	PropertyID int32
}

// ExtendedMetadataEntry is one (format_id, property_id) -> tagged value
// pair. Round-trip preserving; insertion order is not significant.
type ExtendedMetadataEntry struct {
	Key   MetadataKey
	Kind  MetadataKind
	Str   string
	Strs  []string
	U32   uint32
	I32   int32
	F64   float64
	Bool  bool
	UUID  uuid.UUID
	Time  time.Time
	Bytes []byte
}

type invalidErr string

func (e invalidErr) Error() string { return string(e) }
func errInvalid(msg string) error  { return invalidErr(msg) }
