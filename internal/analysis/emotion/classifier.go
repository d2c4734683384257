// Package emotion clasifica métricas de voz en un estado emocional con
// nivel de riesgo. The metrics mirror what the booth microphone pipeline
// measures: average volume, volume variability, approximate frequency and
// detected pauses.
package emotion

import (
	"math/rand"

	"github.com/miguelrl/cabina/client/internal/model/session"
)

// Emotion labels reported to the booth client.
const (
	Estable   = "Estable"
	Ansiedad  = "Ansiedad"
	Tristeza  = "Tristeza"
	Depresion = "Depresión"
	Crisis    = "Crisis"
)

// Metrics are the simplified voice features of one recorded segment.
type Metrics struct {
	Volume      float64 // average absolute amplitude
	Variability float64 // amplitude standard deviation
	Frequency   float64 // approximate fundamental, Hz
	Pauses      float64 // detected silences in the segment
}

// Assessment is the classification of one segment.
type Assessment struct {
	Emotion     string
	Risk        session.RiskLevel
	Confidence  float64
	Explanation string
}

// Detection thresholds for a 16 kHz laptop microphone capture.
const (
	umbralVolumenBajo      = 1000.0
	umbralVolumenAlto      = 8000.0
	umbralVariabilidadAlta = 2000.0
)

// Classify maps voice metrics to an emotional assessment. The rules are
// ordered: the first match wins.
func Classify(m Metrics) Assessment {
	switch {
	case m.Volume < umbralVolumenBajo && m.Variability < 1000 && m.Pauses > 5:
		return Assessment{
			Emotion:     Depresion,
			Risk:        session.RiskMedio,
			Confidence:  0.85,
			Explanation: "Voz muy baja y con muchas pausas",
		}
	case m.Volume > umbralVolumenAlto && m.Variability > umbralVariabilidadAlta:
		return Assessment{
			Emotion:     Ansiedad,
			Risk:        session.RiskMedio,
			Confidence:  0.85,
			Explanation: "Voz intensa y con variabilidad alta",
		}
	case m.Volume < 3000 && m.Frequency < 150:
		return Assessment{
			Emotion:     Tristeza,
			Risk:        session.RiskMedio,
			Confidence:  0.85,
			Explanation: "Voz apagada y tono bajo",
		}
	case m.Volume < 800 && m.Pauses > 8:
		return Assessment{
			Emotion:     Crisis,
			Risk:        session.RiskCritico,
			Confidence:  0.85,
			Explanation: "Señales críticas: voz muy débil con pausas largas",
		}
	default:
		return Assessment{
			Emotion:     Estable,
			Risk:        session.RiskNormal,
			Confidence:  0.85,
			Explanation: "Parámetros de voz en rango normal",
		}
	}
}

// State converts an assessment into the push-channel state payload.
func (a Assessment) State() session.EmotionalState {
	return session.EmotionalState{
		Emotion:    a.Emotion,
		RiskLevel:  a.Risk,
		Confidence: a.Confidence,
	}
}

// Simulator produces synthetic voice metrics for the dev analyzer, so the
// booth client can be exercised without a microphone.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator seeds the metric generator; a fixed seed gives a
// reproducible session.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Next draws the metrics of one simulated segment. Most segments land in
// the stable range; the rest spread over the risky profiles.
func (s *Simulator) Next() Metrics {
	switch draw := s.rng.Float64(); {
	case draw < 0.55: // estable
		return Metrics{
			Volume:      3000 + s.rng.Float64()*4000,
			Variability: 1000 + s.rng.Float64()*800,
			Frequency:   150 + s.rng.Float64()*100,
			Pauses:      s.rng.Float64() * 3,
		}
	case draw < 0.75: // ansiedad
		return Metrics{
			Volume:      8200 + s.rng.Float64()*3000,
			Variability: 2200 + s.rng.Float64()*1500,
			Frequency:   220 + s.rng.Float64()*80,
			Pauses:      s.rng.Float64() * 2,
		}
	case draw < 0.90: // tristeza
		return Metrics{
			Volume:      1200 + s.rng.Float64()*1500,
			Variability: 1100 + s.rng.Float64()*400,
			Frequency:   100 + s.rng.Float64()*40,
			Pauses:      2 + s.rng.Float64()*3,
		}
	case draw < 0.97: // depresión
		return Metrics{
			Volume:      400 + s.rng.Float64()*500,
			Variability: 300 + s.rng.Float64()*500,
			Frequency:   110 + s.rng.Float64()*30,
			Pauses:      6 + s.rng.Float64()*3,
		}
	default: // crisis
		return Metrics{
			Volume:      200 + s.rng.Float64()*500,
			Variability: 1200 + s.rng.Float64()*300,
			Frequency:   160 + s.rng.Float64()*30,
			Pauses:      9 + s.rng.Float64()*4,
		}
	}
}
