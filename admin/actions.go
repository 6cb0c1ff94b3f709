package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opdss/tablib/filter"
	"gorm.io/gorm"
)

// 批量操作表单字段
const (
	ActionVar       = "action"
	SelectedVar     = "_selected_action"
	SelectAcrossVar = "select_across"
)

// ActionRequest 批量操作的上下文，Queryset 为选中的记录
type ActionRequest struct {
	Site     *Site
	Admin    *ModelAdmin
	Queryset *gorm.DB
}

// ActionFunc 批量操作，自行写响应
type ActionFunc func(c *gin.Context, req ActionRequest)

// Action 批量操作
type Action struct {
	Name             string
	ShortDescription string
	Func             ActionFunc
}

var shortDescriptions = map[string]string{
	"xls":  "Export to Excel",
	"xlsx": "Export to Excel (xlsx)",
	"csv":  "Export to CSV",
	"tsv":  "Export to TSV",
	"html": "Export to HTML",
	"md":   "Export to Markdown",
	"json": "Export to JSON",
	"yaml": "Export to YAML",
}

// ActionName 按格式导出的批量操作名
func ActionName(format string) string {
	return format + "_export_action"
}

// ExportAction 导出选中记录，文件名为 VerboseNamePlural
func ExportAction(format string) Action {
	desc, ok := shortDescriptions[format]
	if !ok {
		desc = ActionName(format)
	}
	return Action{
		Name:             ActionName(format),
		ShortDescription: desc,
		Func: func(c *gin.Context, req ActionRequest) {
			req.Site.respond(c, req.Admin, req.Queryset, format, req.Admin.VerboseNamePlural)
		},
	}
}

// Actions 模型的批量操作，自定义操作优先
func (s *Site) Actions(ma *ModelAdmin) []Action {
	actions := make([]Action, 0, len(ma.Formats)+len(ma.Actions))
	index := make(map[string]int)
	if !ma.DisableAdminActions {
		for _, f := range ma.Formats {
			a := ExportAction(f)
			index[a.Name] = len(actions)
			actions = append(actions, a)
		}
	}
	for _, a := range ma.Actions {
		if i, ok := index[a.Name]; ok {
			actions[i] = a
			continue
		}
		index[a.Name] = len(actions)
		actions = append(actions, a)
	}
	return actions
}

type actionInfo struct {
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
}

func (s *Site) listActions(c *gin.Context) {
	actions := s.Actions(modelAdmin(c))
	res := make([]actionInfo, len(actions))
	for i, a := range actions {
		res[i] = actionInfo{Name: a.Name, ShortDescription: a.ShortDescription}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Site) runAction(c *gin.Context) {
	ma := modelAdmin(c)
	name := c.PostForm(ActionVar)
	var action *Action
	actions := s.Actions(ma)
	for i := range actions {
		if actions[i].Name == name {
			action = &actions[i]
			break
		}
	}
	if action == nil {
		c.String(http.StatusBadRequest, "No action selected.")
		c.Abort()
		return
	}
	tx, err := s.changelist(c, ma)
	if err != nil {
		c.String(http.StatusBadRequest, "%s", err.Error())
		c.Abort()
		return
	}
	if c.PostForm(SelectAcrossVar) != "1" {
		selected := c.PostFormArray(SelectedVar)
		if len(selected) == 0 {
			c.String(http.StatusBadRequest, "Items must be selected in order to perform actions on them. No items have been changed.")
			c.Abort()
			return
		}
		if ma.Model.PrimaryKey() == "" {
			c.String(http.StatusBadRequest, "%s has no primary key", ma.Name)
			c.Abort()
			return
		}
		expr, err := filter.Condition(tx, ma.Model, filter.Filter{
			Path:   ma.Model.PrimaryKey(),
			Lookup: "in",
			Value:  strings.Join(selected, ","),
		})
		if err != nil {
			c.String(http.StatusBadRequest, "%s", err.Error())
			c.Abort()
			return
		}
		tx = tx.Where(expr)
	}
	action.Func(c, ActionRequest{Site: s, Admin: ma, Queryset: tx})
}
