package signal

// rollingSum скользящая сумма с компенсацией ошибки округления (алгоритм Ноймайера)
type rollingSum struct {
	sum  float64
	comp float64
}

func (r *rollingSum) add(x float64) {
	t := r.sum + x
	if abs(r.sum) >= abs(x) {
		r.comp += (r.sum - t) + x
	} else {
		r.comp += (x - t) + r.sum
	}
	r.sum = t
}

func (r *rollingSum) value() float64 {
	return r.sum + r.comp
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// RollingMean вычисляет скользящее среднее по последним window значениям.
// Пока накоплено меньше minPeriods значений, среднее не определено (ready[i] == false).
func RollingMean(values []float64, window, minPeriods int) (mean []float64, ready []bool) {
	mean = make([]float64, len(values))
	ready = make([]bool, len(values))

	var sum rollingSum
	for i, v := range values {
		sum.add(v)
		if i >= window {
			sum.add(-values[i-window])
		}

		count := min(i+1, window)
		if count < minPeriods {
			continue
		}
		mean[i] = sum.value() / float64(count)
		ready[i] = true
	}

	return mean, ready
}

// Uptrend проверяет восходящую тенденцию по последним window значениям:
// последовательность неубывающая и последнее значение больше первого.
// До накопления window значений результат false.
func Uptrend(values []float64, window int) []bool {
	out := make([]bool, len(values))
	if window <= 0 {
		return out
	}

	// run - число подряд идущих неубывающих шагов, заканчивающихся на i
	run := 0
	for i, v := range values {
		if i > 0 && v >= values[i-1] {
			run++
		} else {
			run = 0
		}

		if i+1 < window {
			continue
		}
		out[i] = run >= window-1 && v > values[i-window+1]
	}

	return out
}
