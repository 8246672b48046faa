package queryset

type Row struct {
	ID    int
	Value int
	Name  string
}

type Option func(*Model)

func OrderBy(field string) Option { return func(m *Model) { m.ordering = field } }

type Model struct {
	Name     string
	Objects  *Manager
	ordering string
}

func Register(name string, opts ...Option) *Model {
	m := &Model{Name: name}
	for _, o := range opts {
		o(m)
	}
	m.Objects = &Manager{model: m}
	return m
}

type Manager struct{ model *Model }

func (m *Manager) All() *QuerySet                { return &QuerySet{} }
func (m *Manager) OrderBy(field string) *Manager { return m }

type QuerySet struct{ rows []Row }

func (q *QuerySet) At(i int) Row { return q.rows[i] }
func (q *QuerySet) Len() int     { return len(q.rows) }
