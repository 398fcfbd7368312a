// internal/catalog/domain.go
package catalog

import "time"

// Book represents one physical copy. Multiple copies of the same title and
// volume share a code; the id is the exemplar's barcode (usually EAN-13).
type Book struct {
	ID       int64  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Area     string `db:"area" json:"area"`
	Subarea  int    `db:"subarea" json:"subarea"`
	Authors  string `db:"authors" json:"authors"`
	Edition  int    `db:"edition" json:"edition"`
	Language int    `db:"language" json:"language"`
	Volume   int    `db:"volume" json:"volume"`
	Exemplar int    `db:"exemplar" json:"exemplar"`
	Title    string `db:"title" json:"title"`
	Subtitle string `db:"subtitle" json:"subtitle,omitempty"`

	// IsReserved is the didactic-reserve flag: the copy is excluded from
	// borrowing regardless of availability.
	IsReserved bool `db:"is_reserved" json:"is_reserved"`

	// Available is derived on read: no open loan holds the copy. Reserve
	// status does not factor in; it blocks borrowing on its own.
	Available bool `db:"available" json:"available"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
