package assessment

import "testing"

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestClamp(t *testing.T) {
	a := &Assessment{
		Temperature:     floatp(47.3),
		HeartRate:       intp(-5),
		RespirationRate: intp(120),
		SystolicBP:      intp(20),
		DiastolicBP:     intp(200),
		OxygenSat:       intp(30),
		Weight:          intp(500),
		Pain:            intp(12),
		Edema:           intp(9),
		Confusion:       intp(-1),
	}
	a.Clamp()

	if *a.Temperature != 45 {
		t.Errorf("temperature = %v, want 45", *a.Temperature)
	}
	checks := []struct {
		name string
		got  *int
		want int
	}{
		{"heart_rate", a.HeartRate, 0},
		{"respiration_rate", a.RespirationRate, 80},
		{"systolic_bp", a.SystolicBP, 40},
		{"diastolic_bp", a.DiastolicBP, 150},
		{"oxygen_sat", a.OxygenSat, 50},
		{"weight", a.Weight, 300},
		{"pain", a.Pain, 10},
		{"edema", a.Edema, 4},
		{"confusion", a.Confusion, 0},
	}
	for _, c := range checks {
		if *c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, *c.got, c.want)
		}
	}
}

func TestClamp_LeavesAbsentAndInRangeValues(t *testing.T) {
	a := &Assessment{Temperature: floatp(24.0), HeartRate: intp(80)}
	a.Clamp()
	if *a.Temperature != 25 {
		t.Errorf("temperature = %v, want 25", *a.Temperature)
	}
	if *a.HeartRate != 80 {
		t.Errorf("heart_rate changed to %d", *a.HeartRate)
	}
	if a.OxygenSat != nil || a.Pain != nil {
		t.Error("absent values must stay nil")
	}
}

func TestHasVitals(t *testing.T) {
	if (&Assessment{Pain: intp(3)}).HasVitals() {
		t.Error("pain alone is not a vital sign")
	}
	if !(&Assessment{OxygenSat: intp(95)}).HasVitals() {
		t.Error("expected oxygen saturation to count as vital")
	}
}

func TestAccessors(t *testing.T) {
	if _, ok := Int(nil); ok {
		t.Error("Int(nil) should report unset")
	}
	if v, ok := Float(floatp(38.5)); !ok || v != 38.5 {
		t.Errorf("Float = %v, %v", v, ok)
	}
}
