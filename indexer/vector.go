package indexer

import "math"

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	// Can't normalize zero vector
	if magnitude == 0 {
		result := make([]float32, len(v))
		return result
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// QuantizeVector encodes a unit vector as one int8 per dimension.
// Components are clamped to [-1, 1] and scaled by 127, so the stored blob
// is a fixed-width binary whose length equals the dimension count.
func QuantizeVector(v []float32) []byte {
	blob := make([]byte, len(v))
	for i, val := range v {
		if val > 1 {
			val = 1
		} else if val < -1 {
			val = -1
		}
		blob[i] = byte(int8(math.Round(float64(val) * 127)))
	}
	return blob
}

// DequantizeVector decodes an int8-quantized blob back to float32.
func DequantizeVector(blob []byte) []float32 {
	v := make([]float32, len(blob))
	for i, b := range blob {
		v[i] = float32(int8(b)) / 127
	}
	return v
}
