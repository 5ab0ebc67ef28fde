package crdt

// VersionVector представляет вектор версий одной сущности: отображение
// идентификатора реплики в монотонно растущий счетчик ее ревизий.
// Счетчики никогда не уменьшаются. Вектор используется только для учета
// ревизий; покомпонентное сравнение причинности не выполняется.
type VersionVector map[string]int64

// NewVersionVector создает пустой вектор версий.
func NewVersionVector() VersionVector {
	return make(VersionVector)
}

// Increment увеличивает счетчик заданной реплики и возвращает новое значение.
func (v VersionVector) Increment(replicaID string) int64 {
	v[replicaID]++
	return v[replicaID]
}

// Counter возвращает текущий счетчик реплики (0, если реплика не известна).
func (v VersionVector) Counter(replicaID string) int64 {
	return v[replicaID]
}

// Merge вливает другой вектор: для каждой реплики берется максимум
// счетчиков. Операция коммутативна и идемпотентна.
func (v VersionVector) Merge(other VersionVector) {
	for id, counter := range other {
		if counter > v[id] {
			v[id] = counter
		}
	}
}

// Clone создает независимую копию вектора.
func (v VersionVector) Clone() VersionVector {
	clone := make(VersionVector, len(v))
	for id, counter := range v {
		clone[id] = counter
	}
	return clone
}

// Equal сравнивает два вектора покомпонентно. Отсутствующая компонента
// эквивалентна нулю.
func (v VersionVector) Equal(other VersionVector) bool {
	for id, counter := range v {
		if other[id] != counter {
			return false
		}
	}
	for id, counter := range other {
		if v[id] != counter {
			return false
		}
	}
	return true
}
