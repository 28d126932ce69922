package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoPointValidate(t *testing.T) {
	tests := []struct {
		name string
		p    GeoPoint
		ok   bool
	}{
		{"origin", GeoPoint{0, 0}, true},
		{"corners", GeoPoint{-90, 180}, true},
		{"beirut", GeoPoint{33.9, 35.48}, true},
		{"lat too high", GeoPoint{90.01, 0}, false},
		{"lon too low", GeoPoint{0, -180.5}, false},
		{"lon 200", GeoPoint{33.9, 200}, false},
		{"nan", GeoPoint{math.NaN(), 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidDistance)
		})
	}
}

func TestVehicleClassForCylinders(t *testing.T) {
	cases := map[int]VehicleClass{
		3:  ClassFourCylinder,
		4:  ClassFourCylinder,
		6:  ClassSixCylinder,
		8:  ClassEightCylinder,
		10: ClassTwelveCylinder,
		12: ClassTwelveCylinder,
	}
	for n, want := range cases {
		got, err := VehicleClassForCylinders(n)
		require.NoError(t, err)
		assert.Equal(t, want, got, "cylinders=%d", n)
	}
	_, err := VehicleClassForCylinders(0)
	assert.ErrorIs(t, err, ErrUnknownVehicleClass)
}

func TestParseVehicleClass(t *testing.T) {
	c, err := ParseVehicleClass(" 6_Cylinder ")
	require.NoError(t, err)
	assert.Equal(t, ClassSixCylinder, c)

	c, err = ParseVehicleClass("8")
	require.NoError(t, err)
	assert.Equal(t, ClassEightCylinder, c)

	_, err = ParseVehicleClass("diesel")
	assert.ErrorIs(t, err, ErrUnknownVehicleClass)
}

func TestPassengerConstraintsValidate(t *testing.T) {
	ok := PassengerConstraints{Gender: GenderFemale, UniversityID: "aub", Preference: PreferSameGender}
	assert.NoError(t, ok.Validate())

	anyPref := PassengerConstraints{UniversityID: "aub", Preference: PreferAnyGender}
	assert.NoError(t, anyPref.Validate())

	bad := ok
	bad.Preference = "women-only"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConstraint)

	noGender := ok
	noGender.Gender = ""
	assert.ErrorIs(t, noGender.Validate(), ErrInvalidConstraint)

	noUni := ok
	noUni.UniversityID = " "
	assert.ErrorIs(t, noUni.Validate(), ErrInvalidConstraint)
}

func TestDriverCandidateValidate(t *testing.T) {
	d := DriverCandidate{ID: "d1", Gender: GenderMale, Location: GeoPoint{33.9, 35.5}, VehicleClass: ClassFourCylinder}
	assert.NoError(t, d.Validate())

	unpriced := d
	unpriced.VehicleClass = "4"
	err := unpriced.Validate()
	assert.ErrorIs(t, err, ErrInvalidCandidate)
	assert.ErrorIs(t, err, ErrUnknownVehicleClass)
	unpriced.VehicleClass = ""
	assert.ErrorIs(t, unpriced.Validate(), ErrInvalidCandidate)

	d.Location.Lon = 200
	err = d.Validate()
	assert.ErrorIs(t, err, ErrInvalidCandidate)
	assert.Contains(t, err.Error(), "d1")

	assert.ErrorIs(t, DriverCandidate{Gender: GenderMale}.Validate(), ErrInvalidCandidate)
}

func TestPresenceUpdateCandidate(t *testing.T) {
	u := PresenceUpdate{DriverID: "d1", Gender: GenderFemale, UniversityID: "lau", Location: GeoPoint{33.89, 35.47}, Cylinders: 6, Live: true}
	d, err := u.Candidate()
	require.NoError(t, err)
	assert.Equal(t, ClassSixCylinder, d.VehicleClass)
	assert.True(t, d.Live)

	u.Cylinders = 0
	_, err = u.Candidate()
	assert.ErrorIs(t, err, ErrUnknownVehicleClass)

	// an explicit class wins over cylinders and accepts a bare count
	u.Cylinders = 6
	u.VehicleClass = "4"
	d, err = u.Candidate()
	require.NoError(t, err)
	assert.Equal(t, ClassFourCylinder, d.VehicleClass)

	u.VehicleClass = "12_cylinder"
	d, err = u.Candidate()
	require.NoError(t, err)
	assert.Equal(t, ClassTwelveCylinder, d.VehicleClass)

	u.VehicleClass = "bogus"
	_, err = u.Candidate()
	assert.ErrorIs(t, err, ErrUnknownVehicleClass)
}
