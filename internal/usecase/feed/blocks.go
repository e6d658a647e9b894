package feed

import (
	"creator-feed/internal/domain"
	"creator-feed/internal/infra/metrics"
)

const (
	// PreviewSize — сколько ближайших роликов показывает карточка автора.
	PreviewSize = 4
	// LowWaterMark — при такой длине очереди обновление данных перестраивает пустые блоки.
	LowWaterMark = 2
)

// fallbackCategory добивает блоки, если роликов своей категории не хватает.
const fallbackCategory = domain.CategoryVideos

var blockConfig = [...]struct {
	category domain.Category
	target   int
}{
	{domain.CategoryShorts, 10},
	{domain.CategoryVideos, 3},
	{domain.CategoryVODs, 1},
}


type block struct {
	category domain.Category
	target   int
	videos   []domain.Video
}

type idSet map[string]struct{}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) add(id string) {
	s[id] = struct{}{}
}

// pools хранит исходные ролики автора по категориям в порядке источника.
type pools map[domain.Category][]domain.Video

// newPools раскладывает данные источника по категориям, выбрасывая повторы id внутри категории.
func newPools(data domain.CreatorData) pools {
	out := make(pools, len(domain.Categories))
	for _, c := range domain.Categories {
		src := data.Pool(c)
		seen := make(idSet, len(src))
		list := make([]domain.Video, 0, len(src))
		for _, v := range src {
			if v.ID == "" || seen.has(v.ID) {
				continue
			}
			seen.add(v.ID)
			if v.Category == "" {
				v.Category = c
			}
			list = append(list, v)
		}
		out[c] = list
	}
	return out
}

// ids возвращает объединение id всех категорий.
func (p pools) ids() idSet {
	out := make(idSet)
	for _, list := range p {
		for _, v := range list {
			out.add(v.ID)
		}
	}
	return out
}

// buildBlock собирает блок категории: сначала свои ролики, затем fallback-категория.
// Порядок всегда тот, в котором ролики пришли из источника.
func buildBlock(c domain.Category, target int, src pools, excluded idSet) []domain.Video {
	out := make([]domain.Video, 0, target)
	chosen := make(idSet, target)
	for _, v := range src[c] {
		if len(out) == target {
			return out
		}
		if excluded.has(v.ID) || chosen.has(v.ID) {
			continue
		}
		chosen.add(v.ID)
		out = append(out, v)
	}
	for _, v := range src[fallbackCategory] {
		if len(out) == target {
			break
		}
		if excluded.has(v.ID) || chosen.has(v.ID) {
			continue
		}
		chosen.add(v.ID)
		out = append(out, v)
	}
	return out
}

// buildAll строит все три блока с нуля; каждый следующий блок не берёт ролики предыдущих.
func (f *creatorFeed) buildAll() {
	used := make(idSet, len(f.played))
	for id := range f.played {
		used.add(id)
	}
	for i := range f.blocks {
		b := &f.blocks[i]
		b.videos = buildBlock(b.category, b.target, f.pools, used)
		for _, v := range b.videos {
			used.add(v.ID)
		}
	}
}

// exclusion — просмотренные ролики и всё, что лежит в остальных блоках.
func (f *creatorFeed) exclusion(skip int) idSet {
	out := make(idSet, len(f.played)+16)
	for id := range f.played {
		out.add(id)
	}
	for i, b := range f.blocks {
		if i == skip {
			continue
		}
		for _, v := range b.videos {
			out.add(v.ID)
		}
	}
	return out
}

// regenerate перестраивает блок idx.
//
// Если собрать ничего не удалось, блок остаётся пустым, пока в ленте есть
// непросмотренные ролики. Когда просмотрено всё, категория блока зацикливается
// (её история очищается), но только если других категорий с роликами нет —
// иначе полный сброс выполнит следующий ConsumeNext.
func (s *Scheduler) regenerate(f *creatorFeed, idx int) {
	b := &f.blocks[idx]
	b.videos = buildBlock(b.category, b.target, f.pools, f.exclusion(idx))
	outcome := "filled"
	if len(b.videos) == 0 {
		outcome = "empty"
		switch {
		case f.unplayed() > 0:
			s.log.Debug().Str("creator", f.creatorID).Str("category", string(b.category)).Msg("feed: блок пуст, другие ролики ещё не просмотрены")
		case f.loopable(b.category):
			cleared := f.forgetCategory(b.category)
			b.videos = buildBlock(b.category, b.target, f.pools, f.exclusion(idx))
			if len(b.videos) > 0 {
				outcome = "looped"
			}
			s.log.Info().Str("creator", f.creatorID).Str("category", string(b.category)).Int("cleared", cleared).Int("size", len(b.videos)).Msg("feed: категория пошла по второму кругу")
		default:
			s.log.Debug().Str("creator", f.creatorID).Str("category", string(b.category)).Msg("feed: всё просмотрено, ждём полного сброса")
		}
	}
	metrics.ObserveBlockRegeneration(string(b.category), outcome)
	s.log.Debug().Str("creator", f.creatorID).Str("category", string(b.category)).Int("size", len(b.videos)).Int("played", len(f.played)).Msg("feed: блок перестроен")
}

// unplayed считает ролики пула, которых нет в истории.
func (f *creatorFeed) unplayed() int {
	n := 0
	for id := range f.pools.ids() {
		if !f.played.has(id) {
			n++
		}
	}
	return n
}

// loopable: у категории есть свои ролики, а в остальных категориях нет ничего,
// что после очистки только этой категории осталось бы недоступным.
func (f *creatorFeed) loopable(c domain.Category) bool {
	own := make(idSet, len(f.pools[c]))
	for _, v := range f.pools[c] {
		own.add(v.ID)
	}
	if len(own) == 0 {
		return false
	}
	for other, list := range f.pools {
		if other == c {
			continue
		}
		for _, v := range list {
			if !own.has(v.ID) {
				return false
			}
		}
	}
	return true
}

// forgetCategory удаляет из истории ролики категории и возвращает их число.
func (f *creatorFeed) forgetCategory(c domain.Category) int {
	n := 0
	for _, v := range f.pools[c] {
		if f.played.has(v.ID) {
			delete(f.played, v.ID)
			n++
		}
	}
	return n
}
