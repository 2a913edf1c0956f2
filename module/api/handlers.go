package api

import (
	"net/http"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/module/zabbix"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-zabbix-objects/utils/slice"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

type hostView struct {
	ID        string `json:"hostid"`
	Host      string `json:"host"`
	Name      string `json:"name"`
	Status    int    `json:"status"`
	Monitored bool   `json:"monitored"`
	ProxyID   string `json:"proxy_hostid"`
	IP        string `json:"ip"`
	VIP       string `json:"vip"`
}

type macroReq struct {
	Macro string `json:"macro" binding:"required,startswith={$,endswith=}"`
	Value string `json:"value"`
}

type proxyReq struct {
	ProxyID string `json:"proxy_id"`
}

// ackReq action 为空时确认并留言；包含留言位时 message 必填。
type ackReq struct {
	Message string `json:"message"`
	Action  int    `json:"action" binding:"gte=0,lt=32"`
}

type problemView struct {
	EventID      string `json:"eventid"`
	Name         string `json:"name"`
	Severity     int    `json:"severity"`
	Clock        int64  `json:"clock"`
	Acknowledged bool   `json:"acknowledged"`
	TriggerID    string `json:"triggerid"`
	HostID       string `json:"hostid"`
	HostName     string `json:"host_name"`
}

// pathID 读取路径上的数字 ID，不合法时直接回复 400。
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if n, err := cast.ToUint64E(id); err != nil || n == 0 {
		replyError(c, InvalidParameter, name+" 必须为正整数")
		return "", false
	}
	return id, true
}

func (s *Server) getHost(c *gin.Context) {
	id, ok := pathID(c, "host_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	h, err := s.factories.Hosts.GetByID(ctx, id)
	if err != nil {
		replyDomainError(c, "查询主机失败", err)
		return
	}

	view := hostView{ID: h.ID()}
	if view.Host, err = h.Host(ctx); err != nil {
		replyDomainError(c, "读取主机字段失败 "+h.String(), err)
		return
	}
	if view.Name, err = h.Name(ctx); err != nil {
		replyDomainError(c, "读取主机字段失败 "+h.String(), err)
		return
	}
	status, err := h.Status(ctx)
	if err != nil {
		replyDomainError(c, "读取主机字段失败 "+h.String(), err)
		return
	}
	view.Status = int(status)
	view.Monitored = status == zabbix.HostMonitored
	rawProxy, err := h.ProxyID(ctx)
	view.ProxyID, _ = zabbix.Contain("读取主机代理失败 "+h.String(), rawProxy, err)

	rawIP, err := h.IP(ctx)
	view.IP, _ = zabbix.Contain("读取主机 IP 失败 "+h.String(), rawIP, err)
	rawVIP, err := h.VIP(ctx)
	vip, _ := zabbix.Contain("读取主机 VIP 失败 "+h.String(), rawVIP, err)
	view.VIP = string(vip)

	c.JSON(http.StatusOK, view)
}

func (s *Server) putMacro(c *gin.Context) {
	id, ok := pathID(c, "host_id")
	if !ok {
		return
	}
	var req macroReq
	if err := c.ShouldBindJSON(&req); err != nil {
		replyError(c, InvalidParameter, err.Error())
		return
	}
	ctx := c.Request.Context()
	h, err := s.factories.Hosts.Make(core.Record{"hostid": id})
	if err != nil {
		replyDomainError(c, "构造主机失败", err)
		return
	}
	m, err := h.UpdateOrCreateMacro(ctx, req.Macro, req.Value)
	if err != nil {
		replyDomainError(c, "修改主机宏失败 "+h.String(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hostmacroid": m.ID(), "macro": req.Macro, "value": req.Value})
}

func (s *Server) putInventory(c *gin.Context) {
	id, ok := pathID(c, "host_id")
	if !ok {
		return
	}
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		replyError(c, InvalidParameter, err.Error())
		return
	}
	if len(fields) == 0 {
		replyError(c, InvalidParameter, "资产字段不能为空")
		return
	}
	ctx := c.Request.Context()
	h, err := s.factories.Hosts.Make(core.Record{"hostid": id})
	if err != nil {
		replyDomainError(c, "构造主机失败", err)
		return
	}
	if err := h.SetInventory(ctx, fields); err != nil {
		replyDomainError(c, "修改主机资产失败 "+h.String(), err)
		return
	}
	inventory, _ := h.Inventory(ctx)
	c.JSON(http.StatusOK, inventory)
}

func (s *Server) putProxy(c *gin.Context) {
	id, ok := pathID(c, "host_id")
	if !ok {
		return
	}
	var req proxyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		replyError(c, InvalidParameter, err.Error())
		return
	}
	ctx := c.Request.Context()
	h, err := s.factories.Hosts.Make(core.Record{"hostid": id})
	if err != nil {
		replyDomainError(c, "构造主机失败", err)
		return
	}

	var proxy *zabbix.Proxy
	if req.ProxyID != "" && req.ProxyID != "0" {
		if proxy, err = s.factories.Proxies.GetByID(ctx, req.ProxyID); err != nil {
			replyDomainError(c, "查询代理失败", err)
			return
		}
	}
	if err := h.SetProxy(ctx, proxy); err != nil {
		replyDomainError(c, "迁移主机失败 "+h.String(), err)
		return
	}
	proxyID, _ := h.ProxyID(ctx)
	c.JSON(http.StatusOK, gin.H{"hostid": h.ID(), "proxy_hostid": proxyID})
}

func (s *Server) ackEvent(c *gin.Context) {
	id, ok := pathID(c, "event_id")
	if !ok {
		return
	}
	var req ackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		replyError(c, InvalidParameter, err.Error())
		return
	}
	action := zabbix.AckAction(req.Action)
	if action == 0 {
		action = zabbix.AckWithMessage
	}
	if action&zabbix.AckMessage != 0 && req.Message == "" {
		replyError(c, InvalidParameter, "留言时 message 不能为空")
		return
	}
	ctx := c.Request.Context()
	e, err := s.factories.Events.GetByID(ctx, id)
	if err != nil {
		replyDomainError(c, "查询事件失败", err)
		return
	}
	if err := e.Ack(ctx, req.Message, action); err != nil {
		replyDomainError(c, "确认事件失败 "+e.String(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eventid": e.ID(), "action": int(action)})
}

func (s *Server) recentProblems(c *gin.Context) {
	limit := zabbix.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			replyError(c, InvalidParameter, "limit 必须为正整数")
			return
		}
		limit = n
	}
	q := zabbix.RecentQuery{
		GroupIDs: slice.SplitToIDs(c.Query("group_ids")),
		Tags:     slice.SplitToStrings(c.Query("tags")),
		Limit:    limit,
	}

	ctx := c.Request.Context()
	cur, err := s.factories.Problems.Recent(ctx, q)
	if err != nil {
		replyDomainError(c, "查询近期问题失败", err)
		return
	}
	if cur.Exceeded() {
		replyError(c, LimitExceeded, gin.H{"total": cur.Total(), "limit": limit})
		return
	}

	views := make([]problemView, 0, cur.Total())
	for cur.Next(ctx) {
		p := cur.Value()
		view, err := buildProblemView(c, p)
		if err != nil {
			zabbix.ContainErr("跳过问题 "+p.String(), err)
			continue
		}
		views = append(views, view)
	}
	if err := cur.Err(); err != nil {
		replyDomainError(c, "遍历近期问题失败", err)
		return
	}
	log.Debugf("近期问题 %d 条", len(views))
	c.JSON(http.StatusOK, gin.H{"total": len(views), "entries": views})
}

func buildProblemView(c *gin.Context, p *zabbix.Problem) (problemView, error) {
	ctx := c.Request.Context()
	view := problemView{EventID: p.ID(), TriggerID: p.Trigger().ID()}
	var err error
	if view.Name, err = p.Name(ctx); err != nil {
		return view, err
	}
	if view.Severity, err = p.Severity(ctx); err != nil {
		return view, err
	}
	clock, err := p.Clock(ctx)
	if err != nil {
		return view, err
	}
	view.Clock = clock.Unix()
	acked, err := p.Acknowledged(ctx)
	view.Acknowledged, _ = zabbix.Contain("读取确认状态失败 "+p.String(), acked, err)

	host, err := p.Host(ctx)
	if err != nil {
		return view, err
	}
	view.HostID = host.ID()
	rawName, err := host.Name(ctx)
	view.HostName, _ = zabbix.Contain("读取主机名称失败 "+host.String(), rawName, err)
	return view, nil
}

func (s *Server) exportConfiguration(c *gin.Context) {
	format, err := zabbix.ParseFormat(c.Query("format"))
	if err != nil {
		replyError(c, InvalidParameter, err.Error())
		return
	}
	opts := zabbix.ExportOptions{
		HostIDs:     slice.SplitToIDs(c.Query("host_ids")),
		TemplateIDs: slice.SplitToIDs(c.Query("template_ids")),
		GroupIDs:    slice.SplitToIDs(c.Query("group_ids")),
	}
	if len(opts.HostIDs)+len(opts.TemplateIDs)+len(opts.GroupIDs) == 0 {
		replyError(c, InvalidParameter, "至少指定一个导出对象")
		return
	}

	out, err := s.factories.Configuration.Export(c.Request.Context(), format, opts)
	if err != nil {
		replyDomainError(c, "导出配置失败", err)
		return
	}
	c.Data(http.StatusOK, contentType(format), []byte(out))
}

func contentType(f zabbix.Format) string {
	switch f {
	case zabbix.FormatJSON:
		return "application/json; charset=utf-8"
	case zabbix.FormatXML:
		return "application/xml; charset=utf-8"
	}
	return "application/yaml; charset=utf-8"
}
