// Package inventory implements C2, the read-only client over the external
// inventory service's GraphInformer RPC surface. It wraps a grpc.ClientConn
// with the same rate-limiting and bounded-retry idiom the teacher repo
// applies to its GitHub client (internal/github/client.go), and carries the
// int64-widening / multi-value decoding logic from the original
// services/inventory.py.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"golang.org/x/time/rate"

	"github.com/avataa-hq/avataa-graphs/internal/config"
	"github.com/avataa-hq/avataa-graphs/internal/errors"
	"github.com/avataa-hq/avataa-graphs/internal/inventory/pb"
	"github.com/avataa-hq/avataa-graphs/internal/model"
	"github.com/avataa-hq/avataa-graphs/internal/retry"
)

// Client is the C2 inventory gateway: every unary method applies a rate
// limit and a retry.Policy around one GraphInformer RPC. MosByTMOID
// rate-limits each chunk of its stream but does not retry.
type Client struct {
	conn        *grpc.ClientConn
	rateLimiter *rate.Limiter
	retryPolicy retry.Policy
	chunkSize   int32
}

// Dial opens the gRPC channel to the inventory service per cfg.Inventory,
// registering the JSON codec (see codec.go) and the teacher's keepalive
// pattern.
func Dial(ctx context.Context, cfg config.InventoryConfig, retryCfg config.RetryConfig) (*Client, error) {
	conn, err := grpc.NewClient(
		cfg.Target(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, errors.NewTransient(err, "dialing inventory service")
	}

	chunkSize := int32(cfg.DefaultChunkSize)
	if chunkSize == 0 {
		chunkSize = 500
	}

	return &Client{
		conn:        conn,
		rateLimiter: rate.NewLimiter(rate.Limit(50), 10),
		retryPolicy: retry.FromConfig(retryCfg),
		chunkSize:   chunkSize,
	}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	return retry.Do(ctx, c.retryPolicy, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return errors.NewTransient(err, "inventory rate limiter")
		}
		if err := c.conn.Invoke(ctx, method, in, out); err != nil {
			return errors.NewTransient(err, fmt.Sprintf("invoking %s", method))
		}
		return nil
	})
}

// GetTmoTree fetches the full TMO schema tree (or the subtree rooted at
// rootTmoID, when non-nil) and converts it into model.Tmo nodes,
// mirroring _convert_tmo in the original client.
func (c *Client) GetTmoTree(ctx context.Context, rootTmoID *int64) ([]model.Tmo, error) {
	var out pb.OutTmoTree
	if err := c.invoke(ctx, "/graph.GraphInformer/GetTmoTree", pb.InTmoID{TmoID: rootTmoID}, &out); err != nil {
		return nil, err
	}
	tmos := make([]model.Tmo, 0, len(out.Nodes))
	for _, n := range out.Nodes {
		tmos = append(tmos, convertTmoNode(n))
	}
	return tmos, nil
}

func convertTmoNode(n pb.TmoTreeNode) model.Tmo {
	tmo := model.Tmo{
		Name:             n.Name,
		Enabled:          n.Enabled,
		GlobalUniqueness: n.GlobalUniqueness,
		Virtual:          n.Virtual,
		Materialize:      n.Materialize,
	}
	if id, err := parseID(n.ID); err == nil {
		tmo.ID = id
	}
	if n.PID != "" {
		if pid, err := parseID(n.PID); err == nil {
			tmo.PID = &pid
		}
	}
	if n.GeometryType != "" {
		gt := model.GeometryType(n.GeometryType)
		tmo.GeometryType = &gt
	}
	if n.LineType != "" {
		lt := n.LineType
		tmo.LineType = &lt
	}
	if n.Icon != "" {
		icon := n.Icon
		tmo.Icon = &icon
	}
	tmo.Label = parseIDs(n.Label)
	tmo.PointsConstraintByTmo = parseIDs(n.PointsConstraintByTmo)
	tmo.Children = make([]model.Tmo, 0, len(n.Child))
	for _, child := range n.Child {
		tmo.Children = append(tmo.Children, convertTmoNode(child))
	}
	return tmo
}

// GetTprmsByTmoID fetches the TPRM definitions for a set of TMOs.
func (c *Client) GetTprmsByTmoID(ctx context.Context, tmoIDs []int64) ([]model.Tprm, error) {
	var out pb.OutTprms
	if err := c.invoke(ctx, "/graph.GraphInformer/GetTprmsByTmoId", pb.InTmoIDs{TmoID: tmoIDs}, &out); err != nil {
		return nil, err
	}
	return convertTprms(out.Tprms)
}

func convertTprms(msgs []pb.TprmMessage) ([]model.Tprm, error) {
	tprms := make([]model.Tprm, 0, len(msgs))
	for _, m := range msgs {
		id, err := parseID(m.ID)
		if err != nil {
			return nil, err
		}
		tmoID, err := parseID(m.TmoID)
		if err != nil {
			return nil, err
		}
		tprm := model.Tprm{
			ID:         id,
			TmoID:      tmoID,
			Name:       m.Name,
			ValType:    model.ValType(m.ValType),
			Multiple:   m.Multiple,
			Required:   m.Required,
			Returnable: m.Returnable,
		}
		if tprm.IsLinkType() && m.Constraint != "" {
			constraint, err := parseIDList(m.Constraint)
			if err != nil {
				return nil, err
			}
			tprm.Constraint = constraint
		}
		tprms = append(tprms, tprm)
	}
	return tprms, nil
}

// MosByTMOID streams MOs under a TMO in chunks, applying the keep-empty /
// filter options from cfg; the callback is invoked once per chunk so the
// builder can stream-insert without buffering the full MO set in memory
// (spec §4.5, §5 "bounded memory").
func (c *Client) MosByTMOID(ctx context.Context, tmoID int64, moFilterBy, prmFilterBy string, keepMoWithoutPrm bool, onChunk func([]model.MoDto) error) error {
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "MOsByTMOid", ServerStreams: true},
		"/graph.GraphInformer/MOsByTMOid", grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return errors.NewTransient(err, "opening MOsByTMOid stream")
	}

	req := pb.InMOsByTMOid{
		TmoID:            tmoID,
		MoFilterBy:       moFilterBy,
		PrmFilterBy:      prmFilterBy,
		KeepMoWithoutPrm: keepMoWithoutPrm,
		ChunkSize:        c.chunkSize,
	}
	if err := stream.SendMsg(&req); err != nil {
		return errors.NewTransient(err, "sending MOsByTMOid request")
	}
	if err := stream.CloseSend(); err != nil {
		return errors.NewTransient(err, "closing MOsByTMOid send side")
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return errors.NewTransient(err, "inventory rate limiter")
		}
		var chunk pb.OutMOsChunk
		err := stream.RecvMsg(&chunk)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.NewTransient(err, "receiving MOsByTMOid chunk")
		}
		mos := make([]model.MoDto, 0, len(chunk.Mo))
		for _, m := range chunk.Mo {
			mo, err := convertMo(m)
			if err != nil {
				return err
			}
			mos = append(mos, mo)
		}
		if err := onChunk(mos); err != nil {
			return err
		}
	}
}

func convertMo(m pb.MoMessage) (model.MoDto, error) {
	id, err := parseID(m.ID)
	if err != nil {
		return model.MoDto{}, err
	}
	tmoID, err := parseID(m.TmoID)
	if err != nil {
		return model.MoDto{}, err
	}
	mo := model.Mo{
		ID:        id,
		TmoID:     tmoID,
		Name:      m.Name,
		Active:    m.Active,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
	}
	if m.PID != "" {
		if pid, err := parseID(m.PID); err == nil {
			mo.PID = &pid
		}
	}
	if m.PointAID != "" {
		if v, err := parseID(m.PointAID); err == nil {
			mo.PointAID = v
		}
	}
	if m.PointBID != "" {
		if v, err := parseID(m.PointBID); err == nil {
			mo.PointBID = v
		}
	}
	if m.Version != "" {
		if v, err := parseID(m.Version); err == nil {
			mo.Version = v
		}
	}
	params := make([]model.PrmDto, 0, len(m.Params))
	for _, p := range m.Params {
		prm, err := convertPrm(p)
		if err != nil {
			return model.MoDto{}, err
		}
		params = append(params, model.PrmDto{Prm: prm})
	}
	return model.MoDto{Mo: mo, Params: params}, nil
}

func convertPrm(p pb.PrmMessage) (model.Prm, error) {
	id, err := parseID(p.ID)
	if err != nil {
		return model.Prm{}, err
	}
	tprmID, err := parseID(p.TprmID)
	if err != nil {
		return model.Prm{}, err
	}
	moID, err := parseID(p.MoID)
	if err != nil {
		return model.Prm{}, err
	}
	return model.Prm{ID: id, TprmID: tprmID, MoID: moID, Value: p.Value}, nil
}

// GetTmoByMoID resolves a single MO's owning TMO id, used when a
// change-stream MO event arrives without its TMO context (spec §4.7).
func (c *Client) GetTmoByMoID(ctx context.Context, moID int64) (int64, error) {
	var out pb.OutTmoID
	if err := c.invoke(ctx, "/graph.GraphInformer/GetTmoByMoId", pb.InTmoByMoID{MoID: moID}, &out); err != nil {
		return 0, err
	}
	return parseID(out.TmoID)
}

// MosByMoIDs batch-resolves MOs by id, implementing model.Resolver for
// the mo_link codec path.
func (c *Client) MosByMoIDs(ctx context.Context, moIDs []int64) ([]model.Mo, error) {
	if len(moIDs) == 0 {
		return nil, nil
	}
	var out pb.OutMOsByMoIds
	if err := c.invoke(ctx, "/graph.GraphInformer/MOsByMoIds", pb.InMOsByMoIDs{MoIDs: moIDs}, &out); err != nil {
		return nil, err
	}
	mos := make([]model.Mo, 0, len(out.Mos))
	for _, m := range out.Mos {
		dto, err := convertMo(m)
		if err != nil {
			return nil, err
		}
		mos = append(mos, dto.Mo)
	}
	return mos, nil
}

// PrmsByPrmIDs batch-resolves PRMs by id, implementing model.Resolver for
// the prm_link / two-way link codec path.
func (c *Client) PrmsByPrmIDs(ctx context.Context, prmIDs []int64) ([]model.Prm, error) {
	if len(prmIDs) == 0 {
		return nil, nil
	}
	var out pb.OutPRMsByPRMIds
	if err := c.invoke(ctx, "/graph.GraphInformer/PRMsByPrmIds", pb.InPRMsByPRMIds{PrmIDs: prmIDs}, &out); err != nil {
		return nil, err
	}
	prms := make([]model.Prm, 0, len(out.PrmsWithTmo))
	for _, p := range out.PrmsWithTmo {
		prm, err := convertPrm(p.PrmMessage)
		if err != nil {
			return nil, err
		}
		prms = append(prms, prm)
	}
	return prms, nil
}

// PointTmoConst fetches the set of TMO ids one TMO constrains its line
// endpoints to, used by the builder's point-constraint linking pass.
func (c *Client) PointTmoConst(ctx context.Context, tmoID int64) ([]int64, error) {
	var out pb.OutTmoIDs
	if err := c.invoke(ctx, "/graph.GraphInformer/PointTmoConst", pb.InTmoByMoID{MoID: tmoID}, &out); err != nil {
		return nil, err
	}
	return parseIDs(out.TmoIDs)
}

// TprmConst fetches a single TPRM's definition by id.
func (c *Client) TprmConst(ctx context.Context, tprmID int64) (model.Tprm, error) {
	var out pb.OutTprms
	if err := c.invoke(ctx, "/graph.GraphInformer/TprmConst", pb.InTprmID{TprmID: tprmID}, &out); err != nil {
		return model.Tprm{}, err
	}
	tprms, err := convertTprms(out.Tprms)
	if err != nil {
		return model.Tprm{}, err
	}
	if len(tprms) == 0 {
		return model.Tprm{}, errors.NewDocumentNotFound(fmt.Sprintf("tprm %d", tprmID))
	}
	return tprms[0], nil
}

// TprmsByTprmID batch-resolves TPRM definitions by id.
func (c *Client) TprmsByTprmID(ctx context.Context, tprmIDs []int64) ([]model.Tprm, error) {
	var out pb.OutTprms
	if err := c.invoke(ctx, "/graph.GraphInformer/TprmsByTprmId", pb.InTprmIDs{TprmIDs: tprmIDs}, &out); err != nil {
		return nil, err
	}
	return convertTprms(out.Tprms)
}

func parseID(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscan(s, &n)
	if err != nil {
		return 0, fmt.Errorf("parsing id %q: %w", s, err)
	}
	return n, nil
}

func parseIDs(ss []string) []int64 {
	out := make([]int64, 0, len(ss))
	for _, s := range ss {
		if id, err := parseID(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func parseIDList(s string) ([]int64, error) {
	// Constraint arrives as a JSON array literal, e.g. "[1,2,3]".
	var ids []int64
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("parsing constraint %q: %w", s, err)
	}
	return ids, nil
}
