// Package directory resolves callers to employee records loaded from a CSV roster.
package directory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/Urzzard/Operador-IA/pkg/core/dialogue"
)

// ErrNotFound is returned when no employee matches a phone number.
var ErrNotFound = errors.New("employee not found")

// minSuffixDigits is the shortest national number accepted for a match that
// ignores a missing country code.
const minSuffixDigits = 9

// Resolver looks employees up by phone number.
type Resolver interface {
	Lookup(ctx context.Context, phone string) (dialogue.Employee, error)
}

// TestEmployee is the record used when a call cannot be matched and the
// fallback policy allows it.
func TestEmployee() dialogue.Employee {
	return dialogue.Employee{
		Name:      "Empleado de Prueba",
		DNI:       "00000000",
		JobTitle:  "Asesor Comercial",
		StartDate: "lunes",
	}
}

// Directory is an in-memory roster keyed by normalized phone number.
type Directory struct {
	mu      sync.RWMutex
	byPhone map[string]dialogue.Employee
	order   []string
}

func New(employees ...dialogue.Employee) *Directory {
	d := &Directory{byPhone: make(map[string]dialogue.Employee)}
	for _, e := range employees {
		d.add(e)
	}
	return d
}

func (d *Directory) add(e dialogue.Employee) {
	key := NormalizePhone(e.Phone)
	if key == "" {
		return
	}
	e.Name = strings.TrimSpace(e.Name)
	if _, ok := d.byPhone[key]; !ok {
		d.order = append(d.order, key)
	}
	d.byPhone[key] = e
}

// Len returns the number of employees with a usable phone number.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byPhone)
}

// All returns the roster in load order.
func (d *Directory) All() []dialogue.Employee {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]dialogue.Employee, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.byPhone[k])
	}
	return out
}

// Lookup matches phone exactly after normalization, then by national-number
// suffix so "+51987654321" and "987654321" resolve to the same employee.
func (d *Directory) Lookup(_ context.Context, phone string) (dialogue.Employee, error) {
	key := NormalizePhone(phone)
	if key == "" {
		return dialogue.Employee{}, fmt.Errorf("%w: empty phone", ErrNotFound)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.byPhone[key]; ok {
		return e, nil
	}
	want := digits(key)
	if len(want) >= minSuffixDigits {
		for _, k := range d.order {
			have := digits(k)
			if len(have) < minSuffixDigits {
				continue
			}
			if strings.HasSuffix(have, want) || strings.HasSuffix(want, have) {
				return d.byPhone[k], nil
			}
		}
	}
	return dialogue.Employee{}, fmt.Errorf("%w: %s", ErrNotFound, phone)
}

// NormalizePhone strips formatting, keeping a leading "+" and digits.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	if b.String() == "+" {
		return ""
	}
	return b.String()
}

func digits(s string) string {
	return strings.TrimPrefix(s, "+")
}

// LoadCSV reads a roster file with the header
// nombre,dni,puesto,fecha_inicio,telefono (columns in any order).
func LoadCSV(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open employees csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

var requiredColumns = []string{"nombre", "telefono"}

func ReadCSV(r io.Reader) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read employees csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("employees csv: missing column %q", c)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	d := New()
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("employees csv line %d: %w", line, err)
		}
		d.add(dialogue.Employee{
			Name:      field(rec, "nombre"),
			DNI:       field(rec, "dni"),
			JobTitle:  field(rec, "puesto"),
			StartDate: field(rec, "fecha_inicio"),
			Phone:     field(rec, "telefono"),
		})
	}
	return d, nil
}
