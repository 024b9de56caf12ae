// Package mockdata generates a deterministic manuscript corpus for the
// mock review API and for tests. The same seed always yields the same
// manuscripts, files and QC verdicts.
package mockdata

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/currax/manudash/internal/domain"
)

var (
	journals = []string{
		"EMBO Molecular Medicine", "Life Science Alliance",
		"EMBO Reports", "Molecular Systems Biology", "The EMBO Journal",
	}
	statuses = []string{"under review", "revision requested", "ready for QC", "validated"}

	checkTypes = []struct {
		typ, failMsg string
	}{
		{"scale-bar", "no scale bar detected in panel"},
		{"error-bars", "error bars present but not defined in legend"},
		{"blot-integrity", "possible splice line detected in western blot"},
		{"n-reported", "sample size n not stated for quantified data"},
		{"stat-test", "statistical test not named in figure legend"},
		{"micrograph-label", "micrograph magnification missing"},
	}

	idKinds = []struct {
		kind, urlFmt string
	}{
		{"doi", "https://doi.org/%s"},
		{"uniprot", "https://www.uniprot.org/uniprotkb/%s"},
		{"pdb", "https://www.rcsb.org/structure/%s"},
		{"rrid", "https://scicrunch.org/resolver/%s"},
	}

	surnames = []string{
		"Okafor", "Lindqvist", "Moreau", "Tanaka", "Petrov",
		"Alvarez", "Nowak", "Haugen", "Rossi", "Chen",
	}
)

// Corpus is an immutable, seeded set of manuscripts.
type Corpus struct {
	manuscripts []domain.Manuscript
	byID        map[string]int
}

// NewCorpus generates n manuscripts from the given seed.
func NewCorpus(seed int64, n int) *Corpus {
	rng := rand.New(rand.NewSource(seed))
	c := &Corpus{byID: make(map[string]int, n)}
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	for i := range n {
		ms := genManuscript(rng, i, base)
		c.byID[ms.MSID] = i
		c.manuscripts = append(c.manuscripts, ms)
	}
	return c
}

// List returns the manuscripts without their file contents, suitable for a
// listing response.
func (c *Corpus) List() []domain.Manuscript {
	out := make([]domain.Manuscript, len(c.manuscripts))
	for i, ms := range c.manuscripts {
		ms.Files = fileMeta(ms.Files)
		out[i] = ms
	}
	return out
}

// Get returns one manuscript in full, including file contents.
func (c *Corpus) Get(msid string) (domain.Manuscript, bool) {
	i, ok := c.byID[msid]
	if !ok {
		return domain.Manuscript{}, false
	}
	return c.manuscripts[i], true
}

// Files returns the downloadable file set for a manuscript, filtered by
// kind. An unknown kind behaves like domain.AllFiles; the selector is
// opaque to the download subsystem and tolerated verbatim here.
func (c *Corpus) Files(msid string, kind domain.FileKind) ([]domain.FileEntry, bool) {
	ms, ok := c.Get(msid)
	if !ok {
		return nil, false
	}
	if kind != domain.EssentialFiles {
		return ms.Files, true
	}
	var out []domain.FileEntry
	for _, f := range ms.Files {
		if f.Essential {
			out = append(out, f)
		}
	}
	return out, true
}

func genManuscript(rng *rand.Rand, i int, base time.Time) domain.Manuscript {
	msid := fmt.Sprintf("EMM-2024-%04d", 100+i)
	figures := genFigures(rng)
	files := genFiles(rng, msid, len(figures))
	authors := genAuthors(rng)
	return domain.Manuscript{
		MSID:       msid,
		Title:      genTitle(rng),
		DOI:        fmt.Sprintf("10.15252/emmm.2024%04d", 100+i),
		Journal:    journals[rng.Intn(len(journals))],
		Status:     statuses[rng.Intn(len(statuses))],
		ReceivedAt: base.Add(-time.Duration(rng.Intn(90*24)) * time.Hour),
		Authors:    authors,
		Figures:    figures,
		Identifiers: genIdentifiers(rng, msid),
		Files:      files,
	}
}

func genTitle(rng *rand.Rand) string {
	subjects := []string{"TP53", "mitochondrial fission", "ferroptosis", "the gut microbiome", "tau aggregation", "CAR-T persistence"}
	verbs := []string{"drives", "suppresses", "reprograms", "is dispensable for", "licenses"}
	objects := []string{"tumor immune evasion", "hepatic regeneration", "synaptic pruning", "cardiac remodeling", "antiviral immunity"}
	return fmt.Sprintf("%s %s %s",
		subjects[rng.Intn(len(subjects))],
		verbs[rng.Intn(len(verbs))],
		objects[rng.Intn(len(objects))])
}

func genAuthors(rng *rand.Rand) []string {
	n := 2 + rng.Intn(4)
	out := make([]string, n)
	for i := range n {
		out[i] = surnames[rng.Intn(len(surnames))]
	}
	return out
}

func genFigures(rng *rand.Rand) []domain.Figure {
	n := 2 + rng.Intn(5)
	figs := make([]domain.Figure, n)
	for i := range n {
		fig := domain.Figure{
			Label:  fmt.Sprintf("Figure %d", i+1),
			Checks: genChecks(rng),
		}
		for p := range 1 + rng.Intn(4) {
			fig.Panels = append(fig.Panels, domain.Panel{
				Label:  fmt.Sprintf("%d%c", i+1, 'A'+p),
				Checks: genChecks(rng),
			})
		}
		figs[i] = fig
	}
	return figs
}

func genChecks(rng *rand.Rand) []domain.QCCheck {
	n := 1 + rng.Intn(3)
	out := make([]domain.QCCheck, n)
	for i := range n {
		ct := checkTypes[rng.Intn(len(checkTypes))]
		check := domain.QCCheck{
			Type:    ct.typ,
			Outcome: "pass",
			// most checks come from the figure-QC model, some from curators
			AIGenerated: rng.Intn(10) < 7,
		}
		switch rng.Intn(4) {
		case 0:
			check.Outcome = "fail"
			check.Message = ct.failMsg
		case 1:
			check.Outcome = "warn"
			check.Message = ct.failMsg + " (low confidence)"
		}
		out[i] = check
	}
	return out
}

func genIdentifiers(rng *rand.Rand, msid string) []domain.LinkedIdentifier {
	n := 1 + rng.Intn(4)
	out := make([]domain.LinkedIdentifier, 0, n)
	for i := range n {
		k := idKinds[i%len(idKinds)]
		val := fmt.Sprintf("%s-%04d", k.kind, rng.Intn(10000))
		if k.kind == "doi" {
			val = fmt.Sprintf("10.15252/%s", msid)
		}
		out = append(out, domain.LinkedIdentifier{
			Kind:  k.kind,
			Value: val,
			URL:   fmt.Sprintf(k.urlFmt, val),
		})
	}
	return out
}

func genFiles(rng *rand.Rand, msid string, figures int) []domain.FileEntry {
	files := []domain.FileEntry{
		genFile(rng, msid+"_manuscript.pdf", "application/pdf", true),
		genFile(rng, msid+"_source_data.csv", "text/csv", true),
	}
	for i := range figures {
		files = append(files, genFile(rng, fmt.Sprintf("figures/%s_fig%d.tif", msid, i+1), "image/tiff", false))
	}
	if rng.Intn(2) == 0 {
		files = append(files, genFile(rng, msid+"_appendix.docx",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document", false))
	}
	return files
}

func genFile(rng *rand.Rand, name, typ string, essential bool) domain.FileEntry {
	content := make([]byte, 1024+rng.Intn(8*1024))
	rng.Read(content)
	return domain.FileEntry{
		Name:      name,
		Type:      typ,
		Size:      int64(len(content)),
		Essential: essential,
		Content:   content,
	}
}

// fileMeta strips contents, keeping only the metadata a listing needs.
func fileMeta(files []domain.FileEntry) []domain.FileEntry {
	out := make([]domain.FileEntry, len(files))
	for i, f := range files {
		f.Content = nil
		out[i] = f
	}
	return out
}
