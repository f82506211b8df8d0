package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/wfunc/superrpg-core/internal/errors"
	"gopkg.in/yaml.v3"
)

// Catalog 职业、天赋、技能定义，启动时加载一次后只读
type Catalog struct {
	professions map[string]*ProfessionDef
	talents     map[string]*TalentDef
	skills      map[string]*SkillDef
}

// File 目录文件结构，条目按ID覆盖内置定义
type File struct {
	Professions map[string]ProfessionDef `yaml:"professions"`
	Talents     map[string]TalentDef     `yaml:"talents"`
	Skills      map[string]SkillDef      `yaml:"skills"`
}

// Default 仅包含内置定义的目录
func Default() *Catalog {
	c, err := build(File{})
	if err != nil {
		panic(err)
	}
	return c
}

// Load 读取YAML目录文件并合并到内置定义；path为空时返回内置目录
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "读取目录文件失败: %s", path)
	}
	return Parse(data)
}

// Parse 解析YAML目录内容并合并到内置定义
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "解析目录文件失败")
	}
	return build(f)
}

func build(f File) (*Catalog, error) {
	professions := defaultProfessions()
	for id, def := range f.Professions {
		professions[id] = def
	}
	talents := defaultTalents()
	for id, def := range f.Talents {
		talents[id] = def
	}
	skills := defaultSkills()
	for id, def := range f.Skills {
		skills[id] = def
	}

	c := &Catalog{
		professions: make(map[string]*ProfessionDef, len(professions)),
		talents:     make(map[string]*TalentDef, len(talents)),
		skills:      make(map[string]*SkillDef, len(skills)),
	}
	for id, def := range professions {
		def := def
		def.ID = id
		if def.Name == "" {
			def.Name = id
		}
		if def.Requirements.Level < 1 {
			def.Requirements.Level = 1
		}
		c.professions[id] = &def
	}
	for id, def := range talents {
		def := def
		def.ID = id
		if def.Name == "" {
			def.Name = id
		}
		if def.MaxLevel <= 0 {
			def.MaxLevel = 5
		}
		c.talents[id] = &def
	}
	for id, def := range skills {
		def := def
		def.ID = id
		if def.Name == "" {
			def.Name = id
		}
		if def.MaxLevel <= 0 {
			def.MaxLevel = 1
		}
		if def.RequiredLevel < 1 {
			def.RequiredLevel = 1
		}
		if def.TargetType == "" {
			def.TargetType = TargetSelf
		}
		c.skills[id] = &def
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate 校验定义之间的引用关系
func (c *Catalog) validate() error {
	for id, p := range c.professions {
		if p.Requirements.Money < 0 {
			return invalid("职业 %s 的金币要求为负数", id)
		}
		if prev := p.Requirements.PreviousProfession; prev != "" {
			if _, ok := c.professions[prev]; !ok {
				return invalid("职业 %s 的前置职业 %s 不存在", id, prev)
			}
		}
	}
	for id, t := range c.talents {
		if t.Profession != "" {
			if _, ok := c.professions[t.Profession]; !ok {
				return invalid("天赋 %s 所属职业 %s 不存在", id, t.Profession)
			}
		}
		for _, e := range t.Effects {
			if e.Attribute == "" {
				return invalid("天赋 %s 的效果缺少属性", id)
			}
		}
	}
	for id, s := range c.skills {
		if s.Cooldown < 0 || s.ManaCost < 0 {
			return invalid("技能 %s 的冷却或法力消耗为负数", id)
		}
		if s.RequiredProfession != "" {
			if _, ok := c.professions[s.RequiredProfession]; !ok {
				return invalid("技能 %s 需要的职业 %s 不存在", id, s.RequiredProfession)
			}
		}
		switch s.TargetType {
		case TargetSelf, TargetSingle, TargetArea:
		default:
			return invalid("技能 %s 的目标类型 %q 无效", id, s.TargetType)
		}
		for _, e := range s.Effects {
			if _, ok := effectKindNames[e.Kind]; !ok {
				return invalid("技能 %s 含有未知效果类型", id)
			}
			if e.Duration < 0 {
				return invalid("技能 %s 的效果持续时间为负数", id)
			}
		}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.New(errors.ErrCatalogInvalid, fmt.Sprintf(format, args...))
}

// Profession 查找职业定义（只读）
func (c *Catalog) Profession(id string) (*ProfessionDef, bool) {
	p, ok := c.professions[id]
	return p, ok
}

// Talent 查找天赋定义（只读）
func (c *Catalog) Talent(id string) (*TalentDef, bool) {
	t, ok := c.talents[id]
	return t, ok
}

// Skill 查找技能定义（只读）
func (c *Catalog) Skill(id string) (*SkillDef, bool) {
	s, ok := c.skills[id]
	return s, ok
}

// Professions 按ID排序的全部职业
func (c *Catalog) Professions() []*ProfessionDef {
	out := make([]*ProfessionDef, 0, len(c.professions))
	for _, p := range c.professions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Skills 按ID排序的全部技能
func (c *Catalog) Skills() []*SkillDef {
	out := make([]*SkillDef, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TalentTree 职业可用的天赋（含通用天赋），按ID排序
func (c *Catalog) TalentTree(professionID string) []*TalentDef {
	out := make([]*TalentDef, 0)
	for _, t := range c.talents {
		if t.Profession == "" || t.Profession == professionID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
