package hijri

import (
	"testing"
	"time"
)

func TestToGregorian_ReferenceDates(t *testing.T) {
	tests := []struct {
		name string
		date Date
		want string
	}{
		{"1 Moharram 1446", Date{Year: 1446, Month: 0, Day: 1}, "2024-07-07"},
		{"1 Ramadaan 1445", Date{Year: 1445, Month: 8, Day: 1}, "2024-03-10"},
		{"epoch", Date{Year: 1, Month: 0, Day: 1}, "0622-07-18"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.date.Gregorian().Format("2006-01-02")
			if got != tt.want {
				t.Errorf("Gregorian() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromTime_ReferenceDates(t *testing.T) {
	got := FromTime(time.Date(2024, time.July, 7, 15, 0, 0, 0, time.UTC))
	want := Date{Year: 1446, Month: 0, Day: 1}
	if got != want {
		t.Errorf("FromTime(2024-07-07) = %+v, want %+v", got, want)
	}

	got = FromTime(time.Date(2024, time.July, 6, 0, 0, 0, 0, time.UTC))
	want = Date{Year: 1445, Month: 11, Day: 30}
	if got != want {
		t.Errorf("FromTime(2024-07-06) = %+v, want %+v", got, want)
	}
}

func TestGregorianJDN_KnownValue(t *testing.T) {
	if got := gregorianToJDN(2000, 1, 1); got != 2451545 {
		t.Errorf("gregorianToJDN(2000-01-01) = %d, want 2451545", got)
	}
	y, m, d := jdnToGregorian(2451545)
	if y != 2000 || m != 1 || d != 1 {
		t.Errorf("jdnToGregorian(2451545) = %d-%d-%d", y, m, d)
	}
}

func TestJDN_RoundTripAcrossCycles(t *testing.T) {
	start := Date{Year: 1, Month: 0, Day: 1}.JDN()
	end := Date{Year: 61, Month: 0, Day: 1}.JDN()
	if end-start != 2*daysPerCycle {
		t.Fatalf("two cycles span %d days, want %d", end-start, 2*daysPerCycle)
	}

	prev := FromJDN(start)
	for jdn := start + 1; jdn < end; jdn++ {
		d := FromJDN(jdn)
		if !d.Valid() {
			t.Fatalf("FromJDN(%d) = %+v is not valid", jdn, d)
		}
		if d.JDN() != jdn {
			t.Fatalf("FromJDN(%d).JDN() = %d", jdn, d.JDN())
		}
		if prev.Next() != d {
			t.Fatalf("Next(%+v) = %+v, want %+v", prev, prev.Next(), d)
		}
		prev = d
	}
}

func TestIsKabisa(t *testing.T) {
	kabisa := 0
	for y := 1; y <= 30; y++ {
		if IsKabisa(y) {
			kabisa++
		}
	}
	if kabisa != 11 {
		t.Errorf("kabisa years per cycle = %d, want 11", kabisa)
	}
	if !IsKabisa(1445) {
		t.Error("1445 should be kabisa")
	}
	if IsKabisa(1446) {
		t.Error("1446 should not be kabisa")
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{1446, 0, 30},
		{1446, 1, 29},
		{1446, 8, 30},
		{1446, 11, 29},
		{1445, 11, 30},
		{1446, 12, 0},
		{1446, -1, 0},
	}
	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestWeekday(t *testing.T) {
	if got := (Date{Year: 1446, Month: 0, Day: 1}).Weekday(); got != time.Sunday {
		t.Errorf("1 Moharram 1446 weekday = %v, want Sunday", got)
	}
	if got := (Date{Year: 1445, Month: 8, Day: 1}).Weekday(); got != time.Sunday {
		t.Errorf("1 Ramadaan 1445 weekday = %v, want Sunday", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want Date
	}{
		{Date{Year: 1446, Month: 13, Day: 40}, Date{Year: 1446, Month: 11, Day: 29}},
		{Date{Year: 0, Month: -3, Day: 0}, Date{Year: 1, Month: 0, Day: 1}},
		{Date{Year: 20000, Month: 1, Day: 30}, Date{Year: 9999, Month: 1, Day: 29}},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseKey(t *testing.T) {
	d := Date{Year: 1446, Month: 2, Day: 12}
	got, err := ParseKey(d.Key())
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if got != d {
		t.Errorf("ParseKey(%q) = %+v", d.Key(), got)
	}

	for _, bad := range []string{"", "x-1-1446", "30-1-1446", "1-12-1446"} {
		if _, err := ParseKey(bad); err == nil {
			t.Errorf("ParseKey(%q) should fail", bad)
		}
	}
}

func TestString(t *testing.T) {
	d := Date{Year: 1446, Month: 0, Day: 9}
	if got := d.String(); got != "9 Moharram al-Haraam 1446" {
		t.Errorf("String() = %q", got)
	}
}

func TestJDN_BeforeEpoch(t *testing.T) {
	first := Date{Year: 1, Month: 0, Day: 1}
	prev := first.AddDays(-1)
	if prev.Year != 0 || prev.Month != 11 {
		t.Fatalf("expected last month of year 0, got %+v", prev)
	}
	if prev.JDN() != epochJDN-1 {
		t.Errorf("expected JDN %d, got %d", epochJDN-1, prev.JDN())
	}
	if prev.Next() != first {
		t.Errorf("expected Next to return to the epoch, got %+v", prev.Next())
	}
	for jdn := epochJDN - 400; jdn < epochJDN; jdn++ {
		if got := FromJDN(jdn).JDN(); got != jdn {
			t.Fatalf("round trip of %d gave %d", jdn, got)
		}
	}
}
