package features

import "fmt"

// Sizes of the feature groups fed to the model
const (
	ScaledLen   = 17
	UnscaledLen = 5
	VectorLen   = ScaledLen + UnscaledLen
)

// Scaled is the sub-vector that goes through the scaler
type Scaled [ScaledLen]float64

// Unscaled is the sub-vector passed to the model untouched
type Unscaled [UnscaledLen]float64

// Vector is the full model input: scaled group followed by unscaled group
type Vector [VectorLen]float64

// ScaledNames lists the scaled group in model order
var ScaledNames = [ScaledLen]string{
	"DayOfWeek", "Month", "Quarter", "IsWeekend", "Promo", "SchoolHoliday",
	"Sales_Lag_1", "Sales_Lag_7", "Sales_Lag_14", "Sales_Lag_30",
	"Customers_Lag_1", "Customers_Lag_7", "Sales_Rolling_Mean_7",
	"Sales_Rolling_Mean_14", "Sales_Rolling_Std_7", "Sales_Rolling_Std_14",
	"SalesPerCustomer",
}

// UnscaledNames lists the unscaled group in model order
var UnscaledNames = [UnscaledLen]string{
	"Store", "Open", "StoreType", "Assortment", "CompetitionDistance",
}

// Names returns all 22 feature names in model order
func Names() []string {
	names := make([]string, 0, VectorLen)
	names = append(names, ScaledNames[:]...)
	names = append(names, UnscaledNames[:]...)
	return names
}

// ScaledFeatures holds the validated scaled group
type ScaledFeatures struct {
	DayOfWeek          int     `json:"DayOfWeek" validate:"gte=1,lte=7"`
	Month              int     `json:"Month" validate:"gte=1,lte=12"`
	Quarter            int     `json:"Quarter" validate:"gte=1,lte=4"`
	IsWeekend          int     `json:"IsWeekend" validate:"gte=0,lte=1"`
	Promo              float64 `json:"Promo" validate:"finite,gte=0,lte=1"`
	SchoolHoliday      int     `json:"SchoolHoliday" validate:"gte=0,lte=1"`
	SalesLag1          float64 `json:"Sales_Lag_1" validate:"finite,gt=0"`
	SalesLag7          float64 `json:"Sales_Lag_7" validate:"finite,gt=0"`
	SalesLag14         float64 `json:"Sales_Lag_14" validate:"finite,gt=0"`
	SalesLag30         float64 `json:"Sales_Lag_30" validate:"finite,gt=0"`
	CustomersLag1      float64 `json:"Customers_Lag_1" validate:"finite,gt=0"`
	CustomersLag7      float64 `json:"Customers_Lag_7" validate:"finite,gt=0"`
	SalesRollingMean7  float64 `json:"Sales_Rolling_Mean_7" validate:"finite,gt=0"`
	SalesRollingMean14 float64 `json:"Sales_Rolling_Mean_14" validate:"finite,gt=0"`
	SalesRollingStd7   float64 `json:"Sales_Rolling_Std_7" validate:"finite,gte=0"`
	SalesRollingStd14  float64 `json:"Sales_Rolling_Std_14" validate:"finite,gte=0"`
	SalesPerCustomer   float64 `json:"SalesPerCustomer" validate:"finite,gt=0"`
}

// Vector lays the group out in model order
func (s ScaledFeatures) Vector() Scaled {
	return Scaled{
		float64(s.DayOfWeek),
		float64(s.Month),
		float64(s.Quarter),
		float64(s.IsWeekend),
		s.Promo,
		float64(s.SchoolHoliday),
		s.SalesLag1,
		s.SalesLag7,
		s.SalesLag14,
		s.SalesLag30,
		s.CustomersLag1,
		s.CustomersLag7,
		s.SalesRollingMean7,
		s.SalesRollingMean14,
		s.SalesRollingStd7,
		s.SalesRollingStd14,
		s.SalesPerCustomer,
	}
}

// UnscaledFeatures holds the validated store group
type UnscaledFeatures struct {
	Store               int     `json:"Store" validate:"gte=1"`
	Open                int     `json:"Open" validate:"gte=0,lte=1"`
	StoreType           int     `json:"StoreType" validate:"gte=0"`
	Assortment          int     `json:"Assortment" validate:"gte=0"`
	CompetitionDistance float64 `json:"CompetitionDistance" validate:"finite,gte=0"`
}

// Vector lays the group out in model order
func (u UnscaledFeatures) Vector() Unscaled {
	return Unscaled{
		float64(u.Store),
		float64(u.Open),
		float64(u.StoreType),
		float64(u.Assortment),
		u.CompetitionDistance,
	}
}

// Record is a validated prediction input
type Record struct {
	Scaled   ScaledFeatures
	Unscaled UnscaledFeatures
}

// Assemble re-checks a record and splits it into the two model sub-vectors.
// Records built by Validate always pass; hand-built ones may not.
func Assemble(r Record) (Scaled, Unscaled, error) {
	if err := checkRecord(r); err != nil {
		return Scaled{}, Unscaled{}, err
	}
	return r.Scaled.Vector(), r.Unscaled.Vector(), nil
}

// Concat joins the transformed scaled group with the raw unscaled group
func Concat(s Scaled, u Unscaled) Vector {
	var v Vector
	copy(v[:ScaledLen], s[:])
	copy(v[ScaledLen:], u[:])
	return v
}

// FromSlice copies a scaler output back into a Scaled, rejecting any other length
func FromSlice(in []float64) (Scaled, error) {
	var s Scaled
	if len(in) != ScaledLen {
		return s, &DimensionMismatchError{Component: "scaled features", Expected: ScaledLen, Got: len(in)}
	}
	copy(s[:], in)
	return s, nil
}

// DimensionMismatchError reports a vector whose length breaks a component's contract
type DimensionMismatchError struct {
	Component string
	Expected  int
	Got       int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: expected %d, got %d", e.Component, e.Expected, e.Got)
}
