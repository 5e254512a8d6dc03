package geo

import "math"

// EPSG:3035 (ETRS89-extended / LAEA Europe) parameters, GRS80 ellipsoid.
const (
	grs80SemiMajor     = 6378137.0
	grs80Flattening    = 1.0 / 298.257222101
	laeaOriginLatDeg   = 52.0
	laeaOriginLonDeg   = 10.0
	laeaFalseEasting   = 4321000.0
	laeaFalseNorthing  = 3210000.0
)

var laeaEcc2 = grs80Flattening * (2 - grs80Flattening)
var laeaEcc = math.Sqrt(laeaEcc2)

// GeoPoint is a WGS-84 geographic point, degrees.
type GeoPoint struct {
	Lat, Lon float64
}

// ProjPoint is an EPSG:3035 projected point, meters.
type ProjPoint struct {
	East, North float64
}

func authalicQ(phi float64) float64 {
	sinPhi := math.Sin(phi)
	return (1 - laeaEcc2) * (sinPhi/(1-laeaEcc2*sinPhi*sinPhi) -
		(1/(2*laeaEcc))*math.Log((1-laeaEcc*sinPhi)/(1+laeaEcc*sinPhi)))
}

var (
	laeaQP    = authalicQ(math.Pi / 2)
	laeaPhi0  = laeaOriginLatDeg * math.Pi / 180
	laeaLon0  = laeaOriginLonDeg * math.Pi / 180
	laeaQ0    = authalicQ(laeaPhi0)
	laeaBeta0 = math.Asin(laeaQ0 / laeaQP)
	laeaRq    = grs80SemiMajor * math.Sqrt(laeaQP/2)
	laeaM0    = math.Cos(laeaPhi0) / math.Sqrt(1-laeaEcc2*math.Sin(laeaPhi0)*math.Sin(laeaPhi0))
	laeaD     = grs80SemiMajor * laeaM0 / (laeaRq * math.Cos(laeaBeta0))
)

// Project converts a WGS-84 geographic point to EPSG:3035, using the
// ellipsoidal (Snyder) oblique Lambert azimuthal equal-area formulas.
func Project(p GeoPoint) ProjPoint {
	phi := p.Lat * math.Pi / 180
	lambda := p.Lon * math.Pi / 180

	q := authalicQ(phi)
	beta := math.Asin(q / laeaQP)

	dLambda := lambda - laeaLon0
	b := laeaRq * math.Sqrt(2/(1+math.Sin(laeaBeta0)*math.Sin(beta)+
		math.Cos(laeaBeta0)*math.Cos(beta)*math.Cos(dLambda)))

	east := laeaFalseEasting + b*laeaD*math.Cos(beta)*math.Sin(dLambda)
	north := laeaFalseNorthing + (b/laeaD)*(math.Cos(laeaBeta0)*math.Sin(beta)-
		math.Sin(laeaBeta0)*math.Cos(beta)*math.Cos(dLambda))

	return ProjPoint{East: east, North: north}
}

// Unproject converts an EPSG:3035 point back to WGS-84 geographic coordinates.
func Unproject(p ProjPoint) GeoPoint {
	x := p.East - laeaFalseEasting
	y := p.North - laeaFalseNorthing

	rho := math.Sqrt(x*x/(laeaD*laeaD) + laeaD*laeaD*y*y)
	if rho == 0 {
		phi := betaToPhi(laeaBeta0)
		return GeoPoint{Lat: phi * 180 / math.Pi, Lon: laeaOriginLonDeg}
	}

	ce := 2 * math.Asin(rho/(2*laeaRq))
	sinCe := math.Sin(ce)
	cosCe := math.Cos(ce)

	beta := math.Asin(cosCe*math.Sin(laeaBeta0) + (laeaD*y*sinCe*math.Cos(laeaBeta0))/rho)
	lambda := laeaLon0 + math.Atan2(x*sinCe,
		laeaD*rho*math.Cos(laeaBeta0)*cosCe-laeaD*laeaD*y*math.Sin(laeaBeta0)*sinCe)

	phi := betaToPhi(beta)

	return GeoPoint{Lat: phi * 180 / math.Pi, Lon: lambda * 180 / math.Pi}
}

// betaToPhi converts an authalic latitude to a geodetic latitude via the
// standard truncated series expansion in eccentricity.
func betaToPhi(beta float64) float64 {
	e2 := laeaEcc2
	e4 := e2 * e2
	e6 := e4 * e2

	return beta +
		(e2/3+31*e4/180+517*e6/5040)*math.Sin(2*beta) +
		(23*e4/360+251*e6/3780)*math.Sin(4*beta) +
		(761*e6/45360)*math.Sin(6*beta)
}
