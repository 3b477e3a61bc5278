package brdoc

import "testing"

func TestValidCPF(t *testing.T) {
	valid := []string{"529.982.247-25", "52998224725", "111.444.777-35"}
	for _, v := range valid {
		if !ValidCPF(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	invalid := []string{"", "123", "111.111.111-11", "529.982.247-26", "00000000000", "5299822472"}
	for _, v := range invalid {
		if ValidCPF(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestValidCNPJ(t *testing.T) {
	valid := []string{"11.222.333/0001-81", "11222333000181"}
	for _, v := range valid {
		if !ValidCNPJ(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	invalid := []string{"", "11.222.333/0001-82", "11111111111111", "1122233300018"}
	for _, v := range invalid {
		if ValidCNPJ(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestValidPixKey(t *testing.T) {
	cases := []struct {
		keyType string
		key     string
		want    bool
	}{
		{"cpf", "529.982.247-25", true},
		{"cpf", "111.111.111-11", false},
		{"cnpj", "11.222.333/0001-81", true},
		{"email", "worker@example.com", true},
		{"email", "not-an-email", false},
		{"phone", "+55 11 98765-4321", true},
		{"phone", "11987654321", true},
		{"phone", "123", false},
		{"random", "123e4567-e89b-42d3-a456-426614174000", true},
		{"random", "not-a-uuid", false},
		{"boleto", "whatever", false},
	}
	for _, c := range cases {
		if got := ValidPixKey(c.keyType, c.key); got != c.want {
			t.Errorf("ValidPixKey(%q,%q)=%v want %v", c.keyType, c.key, got, c.want)
		}
	}
}
