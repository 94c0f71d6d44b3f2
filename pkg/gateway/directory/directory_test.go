package directory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const roster = `nombre,dni,puesto,fecha_inicio,telefono
Ana Torres,45678912,Analista,lunes 3 de marzo,+51 987 654 321
Luis Paredes,41234567,Vendedor,martes,(01) 555-1234
Sin Telefono,1,x,y,
`

func TestReadCSV(t *testing.T) {
	d, err := ReadCSV(strings.NewReader(roster))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("len=%d", d.Len())
	}
	all := d.All()
	if all[0].Name != "Ana Torres" || all[0].JobTitle != "Analista" || all[0].DNI != "45678912" {
		t.Fatalf("first=%+v", all[0])
	}
}

func TestLookup(t *testing.T) {
	d, err := ReadCSV(strings.NewReader(roster))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	tests := []struct {
		phone string
		want  string
	}{
		{"+51987654321", "Ana Torres"},
		{"987654321", "Ana Torres"},
		{"+51 987-654-321", "Ana Torres"},
		{"015551234", "Luis Paredes"},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			e, err := d.Lookup(t.Context(), tt.phone)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if e.Name != tt.want {
				t.Fatalf("name=%q", e.Name)
			}
		})
	}

	for _, phone := range []string{"", "+1", "5551234", "+51999999999"} {
		if _, err := d.Lookup(t.Context(), phone); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Lookup(%q) err=%v", phone, err)
		}
	}
}

func TestReadCSV_ColumnOrderAndBOM(t *testing.T) {
	in := "\ufefftelefono,nombre\n999888777,Rosa\n"
	d, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	e, err := d.Lookup(t.Context(), "999888777")
	if err != nil || e.Name != "Rosa" {
		t.Fatalf("e=%+v err=%v", e, err)
	}
}

func TestReadCSV_MissingColumn(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("nombre,dni\nA,1\n")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empleados.csv")
	if err := os.WriteFile(path, []byte(roster), 0o600); err != nil {
		t.Fatal(err)
	}
	d, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if d.Len() != 2 {
		t.Fatalf("len=%d", d.Len())
	}
	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		" +51 (987) 654-321 ": "+51987654321",
		"987.654.321":         "987654321",
		"+":                   "",
		"tel:+1 555":          "1555",
	}
	for in, want := range tests {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q)=%q want %q", in, got, want)
		}
	}
}

func TestTestEmployee(t *testing.T) {
	var _ Resolver = New()
	e := TestEmployee()
	if e.Name == "" || e.FirstName() == "" {
		t.Fatalf("e=%+v", e)
	}
}
